// Package session owns the client's authenticated identity and bearer
// credential. A single Store is created at application start and injected
// into the API client, the live channel and the views.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/devtrack/internal/client/storage"
	"github.com/atinyakov/devtrack/internal/models"
)

// ErrNoToken is returned when the backend accepted the credentials but
// issued no access token.
var ErrNoToken = errors.New("backend returned no access token")

//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=authenticator_mock_test.go -package=session

// Authenticator defines the backend operations the Store needs.
type Authenticator interface {
	// Login exchanges email and password for an access token and identity.
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
	// Register creates an account and returns its access token and identity.
	Register(ctx context.Context, reg models.Registration) (*models.AuthResult, error)
}

// Store holds the current (Identity, Credential) pair. The pair is always
// replaced as a whole, so Identity is non-nil exactly when the token is set.
type Store struct {
	auth   Authenticator
	slots  storage.Slots
	logger *zap.Logger

	mu       sync.RWMutex
	identity *models.Identity
	token    string
	loading  bool
	epoch    uint64

	restoreOnce sync.Once

	watchMu  sync.Mutex
	watchers map[int]func(models.Snapshot)
	nextID   int

	// notifyMu orders deliveries; delivered is the newest epoch sent.
	notifyMu  sync.Mutex
	delivered uint64
}

// New creates a Store in the loading state. Call Restore before use.
func New(auth Authenticator, slots storage.Slots, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		auth:     auth,
		slots:    slots,
		logger:   logger,
		loading:  true,
		watchers: make(map[int]func(models.Snapshot)),
	}
}

// Restore loads a previously persisted token and identity. Missing or
// malformed state leaves the session unauthenticated. Restore always
// returns, and Loading turns false exactly once at its end; later calls
// are no-ops.
func (s *Store) Restore(ctx context.Context) {
	s.restoreOnce.Do(func() {
		id, token := s.readPersisted(ctx)

		s.mu.Lock()
		if id != nil {
			s.identity, s.token = id, token
			s.epoch++
		}
		s.loading = false
		snap := s.snapshotLocked()
		s.mu.Unlock()

		if id != nil {
			s.logger.Info("session restored", zap.Int64("user_id", id.ID), zap.String("role", string(id.Role)))
		} else {
			s.logger.Debug("no persisted session")
		}
		s.notify(snap)
	})
}

func (s *Store) readPersisted(ctx context.Context) (*models.Identity, string) {
	token, ok, err := s.slots.Get(ctx, storage.SlotToken)
	if err != nil {
		s.logger.Warn("read token slot", zap.Error(err))
		return nil, ""
	}
	if !ok || token == "" {
		return nil, ""
	}

	raw, ok, err := s.slots.Get(ctx, storage.SlotUser)
	if err != nil {
		s.logger.Warn("read user slot", zap.Error(err))
		return nil, ""
	}
	if !ok {
		return nil, ""
	}

	var id models.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		s.logger.Warn("malformed persisted identity", zap.Error(err))
		return nil, ""
	}
	if id.ID == 0 {
		s.logger.Warn("persisted identity has no id")
		return nil, ""
	}
	return &id, token
}

// Login authenticates against the backend and makes the result the active
// session. On failure the session is left unauthenticated and the backend
// error is returned as-is.
func (s *Store) Login(ctx context.Context, email, password string) (models.Identity, error) {
	res, err := s.auth.Login(ctx, email, password)
	return s.complete(ctx, "login", res, err)
}

// Register creates an account and makes it the active session. An empty
// role becomes models.DefaultRole.
func (s *Store) Register(ctx context.Context, email, username, password string, role models.Role) (models.Identity, error) {
	if role == "" {
		role = models.DefaultRole
	}
	res, err := s.auth.Register(ctx, models.Registration{
		Email:    email,
		Username: username,
		Password: password,
		Role:     role,
	})
	return s.complete(ctx, "register", res, err)
}

func (s *Store) complete(ctx context.Context, op string, res *models.AuthResult, err error) (models.Identity, error) {
	if err == nil && (res == nil || res.AccessToken == "") {
		err = ErrNoToken
	}
	if err != nil {
		s.logger.Info(op+" failed", zap.Error(err))
		s.reset(ctx)
		return models.Identity{}, err
	}

	id := res.User
	s.persist(ctx, id, res.AccessToken)

	s.mu.Lock()
	s.identity, s.token = &id, res.AccessToken
	s.epoch++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info(op+" succeeded", zap.Int64("user_id", id.ID), zap.String("role", string(id.Role)))
	s.notify(snap)
	return id, nil
}

func (s *Store) persist(ctx context.Context, id models.Identity, token string) {
	raw, err := json.Marshal(id)
	if err != nil {
		s.logger.Error("encode identity", zap.Error(err))
		return
	}
	err = s.slots.Put(ctx, map[string]string{
		storage.SlotToken: token,
		storage.SlotUser:  string(raw),
	})
	if err != nil {
		s.logger.Warn("persist session; it will not survive a restart", zap.Error(err))
	}
}

// Logout clears the persisted and in-memory session. It never fails;
// storage errors are logged.
func (s *Store) Logout(ctx context.Context) {
	s.reset(ctx)
	s.logger.Info("logged out")
}

func (s *Store) reset(ctx context.Context) {
	if err := s.slots.Delete(ctx, storage.SlotToken, storage.SlotUser); err != nil {
		s.logger.Warn("clear persisted session", zap.Error(err))
	}

	s.mu.Lock()
	changed := s.identity != nil
	s.identity, s.token = nil, ""
	if changed {
		s.epoch++
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
}

// Token returns the current bearer credential, or "" when unauthenticated.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Identity returns a copy of the current identity, or nil.
func (s *Store) Identity() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// Loading reports whether Restore has not finished yet.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Epoch increases on every identity change. Capture it before an async
// call and compare afterwards to detect results from a previous session.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Current reports whether epoch is still the active one.
func (s *Store) Current(epoch uint64) bool {
	return s.Epoch() == epoch
}

// Snapshot returns a copy of the whole session state.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() models.Snapshot {
	snap := models.Snapshot{Token: s.token, Loading: s.loading, Epoch: s.epoch}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	return snap
}

// Watch registers fn to be called synchronously after every state change.
// Calls are serialised and never go back in time: a snapshot overtaken by
// a newer one is not delivered. fn must not change the session itself.
// The returned function unregisters it.
func (s *Store) Watch(fn func(models.Snapshot)) (cancel func()) {
	s.watchMu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.watchMu.Unlock()

	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

// notify delivers snap, taken in the same critical section as the change
// it describes.
func (s *Store) notify(snap models.Snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if snap.Epoch < s.delivered {
		return
	}
	s.delivered = snap.Epoch

	s.watchMu.Lock()
	fns := make([]func(models.Snapshot), 0, len(s.watchers))
	// registration order
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.watchers[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.watchMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
