package keystore

import "sync"

// MemoryStore is a Store held in process memory. Values are copied on the
// way in and out.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	vals, err := s.GetMany(key)
	if err != nil {
		return nil, false, err
	}
	return vals[0], vals[0] != nil, nil
}

// GetMany implements Store.
func (s *MemoryStore) GetMany(keys ...string) ([][]byte, error) {
	if err := checkKeys(keys); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	out := make([][]byte, len(keys))
	for i, key := range keys {
		if v, ok := s.data[key]; ok {
			out[i] = append([]byte{}, v...)
		}
	}
	return out, nil
}

// Put implements Store.
func (s *MemoryStore) Put(entries ...Entry) error {
	if err := checkEntries(entries); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	for _, e := range entries {
		if e.Delete {
			delete(s.data, e.Key)
			continue
		}
		s.data[e.Key] = append([]byte{}, e.Value...)
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
