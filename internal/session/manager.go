// Package session owns the authentication state of one client context and keeps
// it consistent with the shared credential store.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/telepredict/internal/auth"
	"github.com/spec-kit/telepredict/internal/credstore"
	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/observability"
	"github.com/spec-kit/telepredict/pkg/util"
)

// Listener observes state changes. It runs on the goroutine that caused the change.
type Listener func(domain.SessionState)

// Manager is the session of one context. The zero value is not usable; use NewManager.
type Manager struct {
	store   credstore.Store
	logger  *zap.Logger
	metrics *observability.Metrics

	mu            sync.RWMutex
	state         domain.SessionState
	token         string
	authorization string

	listenersMu sync.Mutex
	nextID      int
	listeners   map[int]Listener

	syncMu   sync.Mutex
	stopSync context.CancelFunc
	syncDone chan struct{}
	tornDown bool
}

// NewManager binds a manager to a store handle. The caller keeps ownership of store.
func NewManager(store credstore.Store, logger *zap.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		store:     store,
		logger:    observability.OrNop(logger).Named("session"),
		metrics:   metrics,
		listeners: make(map[int]Listener),
	}
}

// Init derives the state from the store. A read failure leaves the context Anonymous.
func (m *Manager) Init(ctx context.Context) (domain.SessionState, error) {
	state, err := m.reload(ctx)
	m.metrics.RecordSessionEvent("init")
	return state, err
}

// Login persists the credential and session fields as one write, then becomes Authenticated.
func (m *Manager) Login(ctx context.Context, token string, role domain.Role, subjectID, displayName string) error {
	if token == "" {
		return util.NewValidationError("token must not be empty", nil)
	}
	if !role.Valid() {
		return util.NewValidationError("unknown role "+string(role), nil)
	}

	if err := m.store.SetAll(ctx, map[string]string{
		domain.KeyToken:    token,
		domain.KeyUserType: string(role),
		domain.KeyUserID:   subjectID,
		domain.KeyUsername: displayName,
	}); err != nil {
		m.logger.Error("persist session", zap.Error(err))
		return util.ToDomainError(err)
	}

	m.apply(domain.Authenticated(role, displayName), token)
	m.metrics.RecordSessionEvent("login")
	m.logger.Info("logged in", zap.String("role", string(role)), zap.String("subject_id", subjectID))
	return nil
}

// Logout clears every session key and the cached authorization. The in-memory state
// becomes Anonymous even when the store write fails.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.store.Remove(ctx, domain.SessionKeys...)
	m.apply(domain.Anonymous(), "")
	m.metrics.RecordSessionEvent("logout")
	if err != nil {
		m.logger.Error("clear session", zap.Error(err))
		return util.ToDomainError(err)
	}
	m.logger.Info("logged out")
	return nil
}

// State returns the current state.
func (m *Manager) State() domain.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Token returns the credential behind the current state, or "".
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Authorization returns the cached outbound header value, or "" when Anonymous.
func (m *Manager) Authorization() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authorization
}

// ClearAuthorization drops the cached header without touching the store.
// Anonymous requests such as registration use it.
func (m *Manager) ClearAuthorization() {
	m.mu.Lock()
	m.authorization = ""
	m.mu.Unlock()
}

// OnChange registers fn and returns a function that removes it.
func (m *Manager) OnChange(fn Listener) func() {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

// StartSync subscribes to changes made by other contexts. Each notification on a
// session key triggers a fresh read of the store; the notification itself is not trusted.
func (m *Manager) StartSync(ctx context.Context) error {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()
	if m.tornDown {
		return util.NewInvalidState("session torn down")
	}
	if m.stopSync != nil {
		return nil
	}

	syncCtx, cancel := context.WithCancel(ctx)
	changes, err := m.store.Subscribe(syncCtx)
	if err != nil {
		cancel()
		return util.ToDomainError(err)
	}
	m.stopSync = cancel
	m.syncDone = make(chan struct{})
	go m.follow(syncCtx, changes, m.syncDone)
	return nil
}

func (m *Manager) follow(ctx context.Context, changes <-chan credstore.Change, done chan<- struct{}) {
	defer close(done)
	self := m.store.ContextID()
	for change := range changes {
		if change.ContextID == self || !domain.IsSessionKey(change.Key) {
			continue
		}
		// One login or logout touches all four keys; a single re-read covers them.
		drain(changes)
		if _, err := m.reload(ctx); err != nil {
			m.logger.Warn("resync session", zap.Error(err))
			continue
		}
		m.metrics.RecordSessionEvent("sync")
	}
}

func drain(changes <-chan credstore.Change) {
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Teardown stops synchronization and drops listeners. The manager keeps its last state.
func (m *Manager) Teardown() {
	m.syncMu.Lock()
	m.tornDown = true
	cancel, done := m.stopSync, m.syncDone
	m.stopSync, m.syncDone = nil, nil
	m.syncMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.listenersMu.Lock()
	m.listeners = make(map[int]Listener)
	m.listenersMu.Unlock()
}

func (m *Manager) reload(ctx context.Context) (domain.SessionState, error) {
	values, err := m.store.GetAll(ctx, domain.SessionKeys...)
	if err != nil {
		m.apply(domain.Anonymous(), "")
		return domain.Anonymous(), util.ToDomainError(err)
	}
	state, token := Derive(values)
	m.apply(state, token)
	return state, nil
}

// Derive computes the state that the stored session values describe, together with
// the token it is based on. A missing or malformed token yields Anonymous. A
// parseable token without a recognizable role still counts as signed in, with an
// empty role.
func Derive(values map[string]string) (domain.SessionState, string) {
	token := values[domain.KeyToken]
	if token == "" {
		return domain.Anonymous(), ""
	}
	claims := auth.Decode(token)
	if claims == nil {
		return domain.Anonymous(), ""
	}

	role := domain.Role(values[domain.KeyUserType])
	if !role.Valid() {
		role = claims.UserType
	}
	if !role.Valid() {
		role = ""
	}

	var name string
	switch role {
	case domain.RoleClient:
		name = claims.CompanyName
	case domain.RoleStaff:
		name = claims.Name
	}
	if name == "" {
		name = values[domain.KeyUsername]
	}
	return domain.Authenticated(role, name), token
}

func (m *Manager) apply(state domain.SessionState, token string) {
	m.mu.Lock()
	changed := m.state != state || m.token != token
	m.state = state
	m.token = token
	if state.IsAuthenticated {
		m.authorization = "Bearer " + token
	} else {
		m.authorization = ""
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	m.listenersMu.Lock()
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenersMu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}
