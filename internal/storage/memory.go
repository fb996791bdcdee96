package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryAttachments keeps uploads in process. It backs the in-memory driver.
type MemoryAttachments struct {
	mu      sync.Mutex
	objects map[string]memoryObject
}

func NewMemoryAttachments() *MemoryAttachments {
	return &MemoryAttachments{objects: make(map[string]memoryObject)}
}

func (m *MemoryAttachments) Upload(ctx context.Context, owner, filename string, r io.Reader, size int64, contentType string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := ObjectKey(owner, filename)
	m.mu.Lock()
	m.objects[key] = memoryObject{data: b, contentType: contentType}
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryAttachments) Open(ctx context.Context, key string) (*Object, error) {
	m.mu.Lock()
	o, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{Body: io.NopCloser(bytes.NewReader(o.data)), Size: int64(len(o.data)), ContentType: o.contentType}, nil
}
