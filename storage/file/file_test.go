package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/giantswarm/mcp-auth/internal/testutil"
	"github.com/giantswarm/mcp-auth/storage"
)

func TestPersistAndLoad(t *testing.T) {
	dir := t.TempDir()

	p, err := New(dir)
	testutil.AssertNoError(t, err)

	client := testutil.GenerateTestClient()
	code := testutil.GenerateTestAuthorizationCode()
	token := testutil.GenerateTestAccessToken()

	snap := &storage.Snapshot{
		Clients: map[string]*storage.Client{client.ClientID: client},
		Codes:   map[string]*storage.AuthorizationCode{code.Code: code},
		Tokens:  map[string]*storage.AccessToken{token.Token: token},
	}
	testutil.AssertNoError(t, p.Persist(snap))

	// A second Persister over the same directory sees the data
	p2, err := New(dir)
	testutil.AssertNoError(t, err)

	loaded, err := p2.Load()
	testutil.AssertNoError(t, err)

	got, ok := loaded.Clients[client.ClientID]
	if !ok {
		t.Fatal("loaded snapshot missing client")
	}
	testutil.AssertEqual(t, got.ClientName, client.ClientName)

	if _, ok := loaded.Codes[code.Code]; !ok {
		t.Error("loaded snapshot missing authorization code")
	}
	if _, ok := loaded.Tokens[token.Token]; !ok {
		t.Error("loaded snapshot missing access token")
	}
}

func TestLoadEmptyDirectory(t *testing.T) {
	p, err := New(t.TempDir())
	testutil.AssertNoError(t, err)

	snap, err := p.Load()
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, len(snap.Clients), 0)
	testutil.AssertEqual(t, len(snap.Codes), 0)
	testutil.AssertEqual(t, len(snap.Tokens), 0)
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()

	p, err := New(dir)
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, os.WriteFile(filepath.Join(dir, "clients.json"), []byte("{not json"), 0o600))

	_, err = p.Load()
	testutil.AssertError(t, err)
}

func TestNewRejectsEmptyDir(t *testing.T) {
	_, err := New("")
	testutil.AssertError(t, err)
}
