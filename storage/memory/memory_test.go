package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/mcp-auth/internal/testutil"
	"github.com/giantswarm/mcp-auth/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewWithInterval(time.Hour)
	t.Cleanup(s.Stop)
	return s
}

func TestClientStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := testutil.GenerateTestClient()
	testutil.AssertNoError(t, s.SaveClient(ctx, client))

	got, err := s.GetClient(ctx, client.ClientID)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.ClientName, client.ClientName)

	_, err = s.GetClient(ctx, "no-such-client")
	if !errors.Is(err, storage.ErrClientNotFound) {
		t.Errorf("expected ErrClientNotFound, got %v", err)
	}

	clients, err := s.ListClients(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(clients), 1)
	testutil.AssertEqual(t, s.ClientCount(), int64(1))
}

func TestValidateClientSecret(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-secret"), bcrypt.DefaultCost)
	testutil.AssertNoError(t, err)

	client := testutil.GenerateTestClient()
	client.ClientSecretHash = string(hash)
	testutil.AssertNoError(t, s.SaveClient(ctx, client))

	t.Run("correct secret", func(t *testing.T) {
		testutil.AssertNoError(t, s.ValidateClientSecret(ctx, client.ClientID, "correct-secret"))
	})

	t.Run("wrong secret", func(t *testing.T) {
		err := s.ValidateClientSecret(ctx, client.ClientID, "wrong-secret")
		if !errors.Is(err, storage.ErrInvalidClientCredentials) {
			t.Errorf("expected ErrInvalidClientCredentials, got %v", err)
		}
	})

	t.Run("unknown client gets identical error", func(t *testing.T) {
		err := s.ValidateClientSecret(ctx, "no-such-client", "correct-secret")
		if !errors.Is(err, storage.ErrInvalidClientCredentials) {
			t.Errorf("expected ErrInvalidClientCredentials, got %v", err)
		}
	})
}

func TestRedeemAuthorizationCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	code := testutil.GenerateTestAuthorizationCode()
	testutil.AssertNoError(t, s.SaveAuthorizationCode(ctx, code))

	got, err := s.RedeemAuthorizationCode(ctx, code.Code)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.ClientID, code.ClientID)
	testutil.AssertEqual(t, got.Subject, code.Subject)

	// Second redemption must fail: the code was consumed
	_, err = s.RedeemAuthorizationCode(ctx, code.Code)
	if !errors.Is(err, storage.ErrCodeNotFound) {
		t.Errorf("expected ErrCodeNotFound on reuse, got %v", err)
	}
	testutil.AssertEqual(t, s.CodeCount(), int64(0))
}

func TestRedeemAuthorizationCode_Expired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	code := testutil.GenerateTestAuthorizationCode()
	code.ExpiresAt = time.Now().Add(-time.Second)
	testutil.AssertNoError(t, s.SaveAuthorizationCode(ctx, code))

	_, err := s.RedeemAuthorizationCode(ctx, code.Code)
	if !errors.Is(err, storage.ErrCodeNotFound) {
		t.Errorf("expected ErrCodeNotFound for expired code, got %v", err)
	}

	// Expired redemption still consumes the record
	testutil.AssertEqual(t, s.CodeCount(), int64(0))
}

func TestRedeemAuthorizationCode_Unknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.RedeemAuthorizationCode(context.Background(), "never-issued")
	if !errors.Is(err, storage.ErrCodeNotFound) {
		t.Errorf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestRedeemAuthorizationCode_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	code := testutil.GenerateTestAuthorizationCode()
	testutil.AssertNoError(t, s.SaveAuthorizationCode(ctx, code))

	const attempts = 50

	var wg sync.WaitGroup
	var successes atomic.Int32

	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.RedeemAuthorizationCode(ctx, code.Code); err == nil {
				successes.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := successes.Load(); got != 1 {
		t.Errorf("expected exactly 1 successful redemption, got %d", got)
	}
}

func TestTokenStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token := testutil.GenerateTestAccessToken()
	testutil.AssertNoError(t, s.SaveAccessToken(ctx, token))

	got, err := s.ValidateAccessToken(ctx, token.Token)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.Subject, token.Subject)

	testutil.AssertNoError(t, s.DeleteAccessToken(ctx, token.Token))

	_, err = s.ValidateAccessToken(ctx, token.Token)
	if !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound after delete, got %v", err)
	}
}

func TestValidateAccessToken_ExpiredIsEvicted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token := testutil.GenerateTestAccessToken()
	token.ExpiresAt = time.Now().Add(-time.Minute)
	testutil.AssertNoError(t, s.SaveAccessToken(ctx, token))

	_, err := s.ValidateAccessToken(ctx, token.Token)
	if !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound for expired token, got %v", err)
	}

	// Lazy eviction removed the record
	testutil.AssertEqual(t, s.TokenCount(), int64(0))
}

func TestCleanup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	expired := testutil.GenerateTestAuthorizationCode()
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	testutil.AssertNoError(t, s.SaveAuthorizationCode(ctx, expired))

	live := testutil.GenerateTestAuthorizationCode()
	testutil.AssertNoError(t, s.SaveAuthorizationCode(ctx, live))

	staleToken := testutil.GenerateTestAccessToken()
	staleToken.ExpiresAt = time.Now().Add(-time.Minute)
	testutil.AssertNoError(t, s.SaveAccessToken(ctx, staleToken))

	s.cleanup()

	testutil.AssertEqual(t, s.CodeCount(), int64(1))
	testutil.AssertEqual(t, s.TokenCount(), int64(0))

	if _, err := s.RedeemAuthorizationCode(ctx, live.Code); err != nil {
		t.Errorf("live code should survive cleanup: %v", err)
	}
}

// recordingPersister captures snapshots for assertions
type recordingPersister struct {
	mu    sync.Mutex
	calls int
	last  *storage.Snapshot
}

func (p *recordingPersister) Persist(snap *storage.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.last = snap
	return nil
}

func (p *recordingPersister) wait(t *testing.T, minCalls int) *storage.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		calls, last := p.calls, p.last
		p.mu.Unlock()
		if calls >= minCalls {
			return last
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("persister not invoked %d times", minCalls)
	return nil
}

func TestPersisterNotified(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &recordingPersister{}
	s.SetPersister(p)

	client := testutil.GenerateTestClient()
	testutil.AssertNoError(t, s.SaveClient(ctx, client))

	snap := p.wait(t, 1)
	if _, ok := snap.Clients[client.ClientID]; !ok {
		t.Error("snapshot missing saved client")
	}
}

func TestLoadSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := testutil.GenerateTestClient()
	token := testutil.GenerateTestAccessToken()
	snap := &storage.Snapshot{
		Clients: map[string]*storage.Client{client.ClientID: client},
		Codes:   map[string]*storage.AuthorizationCode{},
		Tokens:  map[string]*storage.AccessToken{token.Token: token},
	}

	s.LoadSnapshot(snap)

	got, err := s.GetClient(ctx, client.ClientID)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.ClientID, client.ClientID)

	_, err = s.ValidateAccessToken(ctx, token.Token)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, s.ClientCount(), int64(1))
	testutil.AssertEqual(t, s.TokenCount(), int64(1))
}
