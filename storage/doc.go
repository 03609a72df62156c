// Package storage provides the storage abstraction layer for the OAuth
// authorization server.
//
// Three independent interfaces cover the three record collections:
//
//   - ClientStore: registered OAuth clients (Dynamic Client Registration)
//   - CodeStore: single-use authorization codes with atomic redemption
//   - TokenStore: bearer access tokens with lazy expiry eviction
//
// The interfaces are deliberately small so that alternative backends can be
// implemented without touching the protocol layer. The Persister hook allows
// a store to flush best-effort snapshots after mutations without coupling
// correctness to persistence.
package storage
