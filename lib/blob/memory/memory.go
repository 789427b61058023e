package memory

import (
	"github.com/ValentinKolb/wKV/lib/blob"
	"github.com/puzpuzpuz/xsync/v3"
)

type memoryStorage struct {
	blobs *xsync.MapOf[string, []byte]
}

// NewStorage returns an empty in-memory blob storage.
func NewStorage() blob.Storage {
	return &memoryStorage{
		blobs: xsync.NewMapOf[string, []byte](),
	}
}

func (m *memoryStorage) Get(name string) ([]byte, bool, error) {
	data, ok := m.blobs.Load(name)
	if !ok {
		return nil, false, nil
	}
	// copy so the caller can not modify the stored blob
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (m *memoryStorage) Set(name string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)
	m.blobs.Store(name, stored)
	return nil
}

func (m *memoryStorage) Keys() ([]string, error) {
	names := make([]string, 0, m.blobs.Size())
	m.blobs.Range(func(name string, _ []byte) bool {
		names = append(names, name)
		return true
	})
	return names, nil
}
