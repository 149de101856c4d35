package credstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spec-kit/telepredict/internal/events"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("credstore: closed")

// MemoryOrigin is a process-local origin. Each Open returns a new context.
type MemoryOrigin struct {
	mu   sync.RWMutex
	data map[string]string
	bus  events.Dispatcher
}

// NewMemoryOrigin creates an empty origin.
func NewMemoryOrigin() *MemoryOrigin {
	return &MemoryOrigin{data: make(map[string]string), bus: events.NewInMemoryDispatcher()}
}

// Open returns a new context bound to the origin.
func (o *MemoryOrigin) Open() *MemoryStore {
	return &MemoryStore{origin: o, id: newContextID()}
}

// MemoryStore is a context on a MemoryOrigin.
type MemoryStore struct {
	origin *MemoryOrigin
	id     string

	mu     sync.Mutex
	closed bool
	unsubs []func()
}

func (s *MemoryStore) ContextID() string { return s.id }

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	if s.isClosed() {
		return "", false, ErrClosed
	}
	s.origin.mu.RLock()
	defer s.origin.mu.RUnlock()
	v, ok := s.origin.data[key]
	return v, ok, nil
}

func (s *MemoryStore) GetAll(_ context.Context, keys ...string) (map[string]string, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	s.origin.mu.RLock()
	defer s.origin.mu.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.origin.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *MemoryStore) SetAll(ctx context.Context, values map[string]string) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.origin.mu.Lock()
	var changed []string
	for k, v := range values {
		if old, ok := s.origin.data[k]; !ok || old != v {
			changed = append(changed, k)
		}
		s.origin.data[k] = v
	}
	s.origin.mu.Unlock()
	return s.publish(ctx, changed)
}

func (s *MemoryStore) Remove(ctx context.Context, keys ...string) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.origin.mu.Lock()
	var changed []string
	for _, k := range keys {
		if _, ok := s.origin.data[k]; ok {
			delete(s.origin.data, k)
			changed = append(changed, k)
		}
	}
	s.origin.mu.Unlock()
	return s.publish(ctx, changed)
}

func (s *MemoryStore) publish(ctx context.Context, keys []string) error {
	now := time.Now()
	for _, k := range keys {
		if err := s.origin.bus.Publish(ctx, events.Event{
			Type:      events.EventStorageChanged,
			Key:       k,
			ContextID: s.id,
			Timestamp: now,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	ch := make(chan Change, changeBuffer)
	var (
		chMu     sync.Mutex
		chClosed bool
	)
	unsubscribe := s.origin.bus.Subscribe(events.EventStorageChanged, func(_ context.Context, e events.Event) error {
		if e.ContextID == s.id {
			return nil
		}
		chMu.Lock()
		defer chMu.Unlock()
		if !chClosed {
			trySend(ch, Change{Key: e.Key, ContextID: e.ContextID})
		}
		return nil
	})

	var once sync.Once
	stopped := make(chan struct{})
	stop := func() {
		once.Do(func() {
			unsubscribe()
			chMu.Lock()
			chClosed = true
			close(ch)
			chMu.Unlock()
			close(stopped)
		})
	}
	s.unsubs = append(s.unsubs, stop)
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-stopped:
		}
	}()
	return ch, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()
	for _, stop := range unsubs {
		stop()
	}
	return nil
}

func (s *MemoryStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
