package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// fileSnapshot is the on-disk layout. Writer names the context of the last write
// so watchers can skip their own changes.
type fileSnapshot struct {
	Values map[string]string `json:"values"`
	Writer string            `json:"writer"`
}

// FileStore keeps the origin in one JSON file shared by every process that opens it.
// Each write replaces the file by rename, so readers always see a complete snapshot.
type FileStore struct {
	path   string
	id     string
	logger *zap.Logger

	mu       sync.Mutex
	closed   bool
	watchers []*fsnotify.Watcher
}

// NewFileStore opens a context on the file at path, creating its directory.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, id: newContextID(), logger: logger}, nil
}

func (s *FileStore) ContextID() string { return s.id }

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	snap, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := snap.Values[key]
	return v, ok, nil
}

func (s *FileStore) GetAll(_ context.Context, keys ...string) (map[string]string, error) {
	snap, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := snap.Values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *FileStore) SetAll(_ context.Context, values map[string]string) error {
	return s.update(func(m map[string]string) {
		for k, v := range values {
			m[k] = v
		}
	})
}

func (s *FileStore) Remove(_ context.Context, keys ...string) error {
	return s.update(func(m map[string]string) {
		for _, k := range keys {
			delete(m, k)
		}
	})
}

func (s *FileStore) update(mutate func(map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	snap, err := s.read()
	if err != nil {
		return err
	}
	mutate(snap.Values)
	snap.Writer = s.id
	return s.write(snap)
}

func (s *FileStore) read() (fileSnapshot, error) {
	snap := fileSnapshot{Values: map[string]string{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("read store: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return fileSnapshot{Values: map[string]string{}}, fmt.Errorf("decode store: %w", err)
	}
	if snap.Values == nil {
		snap.Values = map[string]string{}
	}
	return snap, nil
}

func (s *FileStore) write(snap fileSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

// Subscribe watches the store file's directory and diffs snapshots to name the
// keys another context changed.
func (s *FileStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch store dir: %w", err)
	}
	s.watchers = append(s.watchers, w)

	last, err := s.read()
	if err != nil {
		s.logger.Warn("store unreadable at subscribe", zap.Error(err))
	}

	ch := make(chan Change, changeBuffer)
	go s.watch(ctx, w, last, ch)
	return ch, nil
}

func (s *FileStore) watch(ctx context.Context, w *fsnotify.Watcher, last fileSnapshot, ch chan<- Change) {
	defer close(ch)
	defer w.Close()
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			next, err := s.read()
			if err != nil {
				// A half-visible file is retried on the next event.
				s.logger.Debug("store read during watch", zap.Error(err))
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if _, statErr := os.Stat(target); errors.Is(statErr, os.ErrNotExist) {
					next = fileSnapshot{Values: map[string]string{}}
				}
			}
			for _, key := range diffKeys(last.Values, next.Values) {
				if next.Writer == s.id && next.Writer != "" {
					continue
				}
				trySend(ch, Change{Key: key, ContextID: next.Writer})
			}
			last = next

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("store watcher error", zap.Error(err))
		}
	}
}

func diffKeys(before, after map[string]string) []string {
	var keys []string
	for k, v := range after {
		if old, ok := before[k]; !ok || old != v {
			keys = append(keys, k)
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, w := range s.watchers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.watchers = nil
	return errors.Join(errs...)
}
