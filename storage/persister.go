package storage

// Snapshot is a point-in-time copy of a store's three record collections,
// keyed by their identifying value. No cross-referential integrity is
// enforced at this layer.
type Snapshot struct {
	Clients map[string]*Client            `json:"clients"`
	Codes   map[string]*AuthorizationCode `json:"codes"`
	Tokens  map[string]*AccessToken       `json:"tokens"`
}

// Persister is the durability hook a store calls after each mutation.
// Persistence is a durability optimization, not a correctness dependency:
// implementations are invoked fire-and-forget, their failures are logged by
// the store and never propagate into the caller's result. The in-memory
// state remains the source of truth for a single process's lifetime.
type Persister interface {
	// Persist writes a snapshot. Called outside the store's lock.
	Persist(snap *Snapshot) error
}
