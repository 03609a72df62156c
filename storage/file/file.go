// Package file provides a JSON file-backed Persister for the in-memory
// store. Snapshots are written atomically (temp file plus rename), one file
// per record collection, so a restarted process can restore its state with
// Load. Durability is best-effort; the in-memory store remains authoritative.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/giantswarm/mcp-auth/storage"
)

const (
	clientsFile = "clients.json"
	codesFile   = "codes.json"
	tokensFile  = "tokens.json"

	fileMode = 0o600
	dirMode  = 0o700
)

// Persister writes storage snapshots as JSON files under a directory.
type Persister struct {
	mu  sync.Mutex
	dir string
}

var _ storage.Persister = (*Persister)(nil)

// New creates a Persister rooted at dir, creating the directory if needed.
func New(dir string) (*Persister, error) {
	if dir == "" {
		return nil, fmt.Errorf("persistence directory cannot be empty")
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create persistence directory: %w", err)
	}
	return &Persister{dir: dir}, nil
}

// Persist writes the snapshot. Writes are serialized so concurrent
// notifications from the store cannot interleave partial files.
func (p *Persister) Persist(snap *storage.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writeFile(clientsFile, snap.Clients); err != nil {
		return err
	}
	if err := p.writeFile(codesFile, snap.Codes); err != nil {
		return err
	}
	return p.writeFile(tokensFile, snap.Tokens)
}

// Load reads a previously persisted snapshot. Missing files yield empty
// collections, so a fresh directory loads cleanly.
func (p *Persister) Load() (*storage.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := &storage.Snapshot{
		Clients: make(map[string]*storage.Client),
		Codes:   make(map[string]*storage.AuthorizationCode),
		Tokens:  make(map[string]*storage.AccessToken),
	}

	if err := p.readFile(clientsFile, &snap.Clients); err != nil {
		return nil, err
	}
	if err := p.readFile(codesFile, &snap.Codes); err != nil {
		return nil, err
	}
	if err := p.readFile(tokensFile, &snap.Tokens); err != nil {
		return nil, err
	}

	return snap, nil
}

// writeFile marshals v and atomically replaces the target file
func (p *Persister) writeFile(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	target := filepath.Join(p.dir, name)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	return nil
}

// readFile unmarshals the named file into v, tolerating absence
func (p *Persister) readFile(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(p.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}

	return nil
}
