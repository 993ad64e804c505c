// Package memory is an in-process object store for tests and local runs
// without a bucket.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	storagepkg "github.com/coownly/esign-backend/pkg/storage"
)

type object struct {
	data        []byte
	contentType string
}

// Store keeps objects in a map. PutErr and GetErr inject failures; OnPut runs
// before each write, outside the store's lock.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object

	PutErr error
	GetErr error
	OnPut  func(key string)
}

func New() *Store {
	return &Store{objects: make(map[string]object)}
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := storagepkg.ValidateKey(key); err != nil {
		return "", err
	}
	if s.OnPut != nil {
		s.OnPut(key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return "", s.PutErr
	}
	cp := append([]byte(nil), data...)
	s.objects[key] = object{data: cp, contentType: contentType}
	return key, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storagepkg.ErrNotFound, key)
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *Store) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("%w: %s", storagepkg.ErrNotFound, key)
	}
	return fmt.Sprintf("memory://%s?ttl=%s", key, ttl), nil
}

// Overwrite replaces stored bytes in place, simulating tampering.
func (s *Store) Overwrite(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.objects[key]
	obj.data = append([]byte(nil), data...)
	s.objects[key] = obj
}

// Keys lists stored object keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

func (s *Store) Ping(context.Context) error { return nil }
