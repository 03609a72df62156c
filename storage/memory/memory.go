package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/mcp-auth/instrumentation"
	"github.com/giantswarm/mcp-auth/internal/util"
	"github.com/giantswarm/mcp-auth/security"
	"github.com/giantswarm/mcp-auth/storage"
)

const (
	// tokenIDLogLength is the number of characters to include when logging
	// token and code values. Enough uniqueness for debugging while keeping
	// logs free of usable credentials.
	tokenIDLogLength = 8
)

// Store is an in-memory implementation of all storage interfaces.
// It implements ClientStore, CodeStore, and TokenStore.
type Store struct {
	mu sync.RWMutex

	// Client storage
	clients map[string]*storage.Client

	// Pending single-use authorization codes
	codes map[string]*storage.AuthorizationCode

	// Live access tokens, keyed by bearer value
	tokens map[string]*storage.AccessToken

	// Durability hook, invoked fire-and-forget after each mutation
	persister storage.Persister

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Atomic counters for metrics (lock-free access during metric collection)
	clientsCountAtomic atomic.Int64
	codesCountAtomic   atomic.Int64
	tokensCountAtomic  atomic.Int64

	// Cleanup
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	logger          *slog.Logger
}

// Compile-time interface checks to ensure Store implements all storage interfaces
var (
	_ storage.ClientStore = (*Store)(nil)
	_ storage.CodeStore   = (*Store)(nil)
	_ storage.TokenStore  = (*Store)(nil)
)

// New creates a new in-memory store with default cleanup interval (1 minute)
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with custom cleanup interval.
// If cleanupInterval is 0 or negative, uses default of 1 minute.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		clients:         make(map[string]*storage.Client),
		codes:           make(map[string]*storage.AuthorizationCode),
		tokens:          make(map[string]*storage.AccessToken),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	// Start background cleanup
	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetPersister attaches a durability hook. Snapshots are written
// asynchronously after each mutation; persistence failures are logged and
// never propagate into store operation results.
func (s *Store) SetPersister(p storage.Persister) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persister = p
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}

	// Initialize atomic counters with current counts
	s.clientsCountAtomic.Store(int64(len(s.clients)))
	s.codesCountAtomic.Store(int64(len(s.codes)))
	s.tokensCountAtomic.Store(int64(len(s.tokens)))
	s.mu.Unlock()

	if inst != nil {
		// Register storage size callbacks using atomic counters (lock-free)
		err := inst.RegisterStorageSizeCallbacks(
			func() int64 { return s.clientsCountAtomic.Load() },
			func() int64 { return s.codesCountAtomic.Load() },
			func() int64 { return s.tokensCountAtomic.Load() },
		)
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// LoadSnapshot replaces the store's contents with a previously persisted
// snapshot. Intended for startup restore, before the store is shared.
func (s *Store) LoadSnapshot(snap *storage.Snapshot) {
	if snap == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients = make(map[string]*storage.Client, len(snap.Clients))
	for id, c := range snap.Clients {
		s.clients[id] = c
	}
	s.codes = make(map[string]*storage.AuthorizationCode, len(snap.Codes))
	for code, c := range snap.Codes {
		s.codes[code] = c
	}
	s.tokens = make(map[string]*storage.AccessToken, len(snap.Tokens))
	for tok, t := range snap.Tokens {
		s.tokens[tok] = t
	}

	s.clientsCountAtomic.Store(int64(len(s.clients)))
	s.codesCountAtomic.Store(int64(len(s.codes)))
	s.tokensCountAtomic.Store(int64(len(s.tokens)))

	s.logger.Info("Restored storage snapshot",
		"clients", len(s.clients),
		"codes", len(s.codes),
		"tokens", len(s.tokens))
}

// Stop gracefully stops the cleanup goroutine
func (s *Store) Stop() {
	close(s.stopCleanup)
}

// ============================================================
// ClientStore Implementation
// ============================================================

// SaveClient saves a registered client
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	ctx, span := s.startStorageSpan(ctx, "save_client")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_client", err, startTime)
	}()

	if client == nil || client.ClientID == "" {
		err = fmt.Errorf("invalid client")
		return err
	}

	s.mu.Lock()
	_, existed := s.clients[client.ClientID]
	s.clients[client.ClientID] = client
	if !existed {
		s.clientsCountAtomic.Add(1)
	}
	s.mu.Unlock()

	s.logger.Debug("Saved client", "client_id", client.ClientID)
	s.notifyPersister()

	return nil
}

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	ctx, span := s.startStorageSpan(ctx, "get_client")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "get_client", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		err = fmt.Errorf("%w: %s", storage.ErrClientNotFound, clientID)
		return nil, err
	}

	return client, nil
}

// dummyBcryptHash is a pre-computed bcrypt hash (of "test") compared against
// when the client does not exist, so secret validation always performs one
// bcrypt comparison regardless of client existence.
const dummyBcryptHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// ValidateClientSecret validates a client's secret using bcrypt.
// An unknown client and a wrong secret are indistinguishable to the caller.
func (s *Store) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	client, err := s.GetClient(ctx, clientID)

	hashToCompare := dummyBcryptHash
	if err == nil && client.ClientSecretHash != "" {
		hashToCompare = client.ClientSecretHash
	}

	// Always perform the bcrypt comparison, even for unknown clients
	bcryptErr := bcrypt.CompareHashAndPassword([]byte(hashToCompare), []byte(clientSecret))

	if err != nil || bcryptErr != nil {
		return storage.ErrInvalidClientCredentials
	}

	return nil
}

// ListClients lists all registered clients
func (s *Store) ListClients(ctx context.Context) ([]*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]*storage.Client, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}

	return clients, nil
}

// ============================================================
// CodeStore Implementation
// ============================================================

// SaveAuthorizationCode saves an issued authorization code
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	ctx, span := s.startStorageSpan(ctx, "save_authorization_code")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_authorization_code", err, startTime)
	}()

	if code == nil || code.Code == "" {
		err = fmt.Errorf("invalid authorization code")
		return err
	}

	s.mu.Lock()
	_, existed := s.codes[code.Code]
	s.codes[code.Code] = code
	if !existed {
		s.codesCountAtomic.Add(1)
	}
	s.mu.Unlock()

	s.logger.Debug("Saved authorization code",
		"code_prefix", codePrefix(code.Code),
		"client_id", code.ClientID)
	s.notifyPersister()

	return nil
}

// RedeemAuthorizationCode atomically retrieves and deletes an authorization
// code. The lookup and delete happen under a single write lock, so of N
// concurrent redemption attempts exactly one observes the record. Expired
// codes are deleted and reported as not found.
func (s *Store) RedeemAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	ctx, span := s.startStorageSpan(ctx, "redeem_authorization_code")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "redeem_authorization_code", err, startTime)
	}()

	s.mu.Lock()

	authCode, ok := s.codes[code]
	if !ok {
		s.mu.Unlock()
		err = storage.ErrCodeNotFound
		return nil, err
	}

	// The code is consumed whether or not it turns out to be usable
	delete(s.codes, code)
	s.codesCountAtomic.Add(-1)
	s.mu.Unlock()

	s.notifyPersister()

	if security.IsExpired(authCode.ExpiresAt) {
		s.logger.Debug("Rejected expired authorization code",
			"code_prefix", codePrefix(code),
			"expired_at", authCode.ExpiresAt)
		err = storage.ErrCodeNotFound
		return nil, err
	}

	s.logger.Debug("Redeemed authorization code",
		"code_prefix", codePrefix(code),
		"client_id", authCode.ClientID)

	return authCode, nil
}

// ============================================================
// TokenStore Implementation
// ============================================================

// SaveAccessToken saves an issued access token
func (s *Store) SaveAccessToken(ctx context.Context, token *storage.AccessToken) error {
	ctx, span := s.startStorageSpan(ctx, "save_access_token")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_access_token", err, startTime)
	}()

	if token == nil || token.Token == "" {
		err = fmt.Errorf("invalid access token")
		return err
	}

	s.mu.Lock()
	_, existed := s.tokens[token.Token]
	s.tokens[token.Token] = token
	if !existed {
		s.tokensCountAtomic.Add(1)
	}
	s.mu.Unlock()

	s.logger.Debug("Saved access token",
		"token_prefix", codePrefix(token.Token),
		"client_id", token.ClientID)
	s.notifyPersister()

	return nil
}

// ValidateAccessToken retrieves a token by its bearer value. Expired entries
// are purged as a side effect and reported as not found.
func (s *Store) ValidateAccessToken(ctx context.Context, accessToken string) (*storage.AccessToken, error) {
	ctx, span := s.startStorageSpan(ctx, "validate_access_token")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "validate_access_token", err, startTime)
	}()

	s.mu.Lock()

	token, ok := s.tokens[accessToken]
	if !ok {
		s.mu.Unlock()
		err = storage.ErrTokenNotFound
		return nil, err
	}

	if security.IsExpired(token.ExpiresAt) {
		// Lazy eviction: reads observe expiry even between cleanup sweeps
		delete(s.tokens, accessToken)
		s.tokensCountAtomic.Add(-1)
		s.mu.Unlock()

		s.notifyPersister()
		s.logger.Debug("Evicted expired access token",
			"token_prefix", codePrefix(accessToken))
		err = storage.ErrTokenNotFound
		return nil, err
	}

	s.mu.Unlock()

	return token, nil
}

// DeleteAccessToken removes a token
func (s *Store) DeleteAccessToken(ctx context.Context, accessToken string) error {
	ctx, span := s.startStorageSpan(ctx, "delete_access_token")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "delete_access_token", err, startTime)
	}()

	s.mu.Lock()
	if _, ok := s.tokens[accessToken]; ok {
		delete(s.tokens, accessToken)
		s.tokensCountAtomic.Add(-1)
	}
	s.mu.Unlock()

	s.notifyPersister()

	return nil
}

// ============================================================
// Counts (for admin surfaces and tests)
// ============================================================

// ClientCount returns the number of registered clients
func (s *Store) ClientCount() int64 { return s.clientsCountAtomic.Load() }

// CodeCount returns the number of pending authorization codes
func (s *Store) CodeCount() int64 { return s.codesCountAtomic.Load() }

// TokenCount returns the number of live access tokens
func (s *Store) TokenCount() int64 { return s.tokensCountAtomic.Load() }

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()

	cleaned := 0

	for code, authCode := range s.codes {
		if security.IsExpired(authCode.ExpiresAt) {
			delete(s.codes, code)
			s.codesCountAtomic.Add(-1)
			cleaned++
		}
	}

	for tok, token := range s.tokens {
		if security.IsExpired(token.ExpiresAt) {
			delete(s.tokens, tok)
			s.tokensCountAtomic.Add(-1)
			cleaned++
		}
	}

	s.mu.Unlock()

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired entries", "count", cleaned)
		s.notifyPersister()
	}
}

// ============================================================
// Persistence
// ============================================================

// notifyPersister asynchronously writes a snapshot of the current state.
// Must be called outside the store's lock.
func (s *Store) notifyPersister() {
	s.mu.RLock()
	p := s.persister
	s.mu.RUnlock()

	if p == nil {
		return
	}

	go func() {
		snap := s.snapshot()
		if err := p.Persist(snap); err != nil {
			s.logger.Warn("Failed to persist storage snapshot", "error", err)
		}
	}()
}

// snapshot copies the current state into a Snapshot. Record pointers are
// shared; records are treated as immutable after save.
func (s *Store) snapshot() *storage.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &storage.Snapshot{
		Clients: make(map[string]*storage.Client, len(s.clients)),
		Codes:   make(map[string]*storage.AuthorizationCode, len(s.codes)),
		Tokens:  make(map[string]*storage.AccessToken, len(s.tokens)),
	}
	for id, c := range s.clients {
		snap.Clients[id] = c
	}
	for code, c := range s.codes {
		snap.Codes[code] = c
	}
	for tok, t := range s.tokens {
		snap.Tokens[tok] = t
	}

	return snap
}

// ============================================================
// Instrumentation helpers
// ============================================================

// startStorageSpan starts a trace span for a storage operation
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String("operation", operation),
		))

	return ctx, span
}

// recordStorageOperation records metrics for a storage operation and sets span status
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Milliseconds())
	result := "success"
	if err != nil {
		result = "error"
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	} else if span != nil {
		span.SetStatus(codes.Ok, "")
	}

	s.instrumentation.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}

// codePrefix returns a loggable prefix of a credential value
func codePrefix(v string) string {
	return util.SafeTruncate(v, tokenIDLogLength)
}
