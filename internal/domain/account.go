package domain

// Account identifies a caller. The transport layer guarantees it is the
// verified identity of whoever submitted the transition; the core never
// authenticates accounts itself.
type Account string

// NoAccount is the zero identity, used as the transfer source when a ticket
// is first minted.
const NoAccount Account = ""
