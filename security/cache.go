package security

import (
	"bytes"
	"fmt"
	"sync"
)

// Purpose selects a KeyCache slot.
type Purpose int

const (
	PurposePIN Purpose = iota
	PurposeMAC
	PurposeARQC
)

func (p Purpose) String() string {
	switch p {
	case PurposePIN:
		return "PIN"
	case PurposeMAC:
		return "MAC"
	case PurposeARQC:
		return "ARQC"
	}
	return fmt.Sprintf("Purpose(%d)", int(p))
}

type cacheEntry struct {
	usage    Usage
	keyBytes []byte
	handle   *Key
}

// KeyCache keeps the last imported handle per purpose, so a run does not
// re-import the same key for every message.
type KeyCache struct {
	provider Provider
	mu       sync.Mutex
	slots    map[Purpose]cacheEntry
}

func NewKeyCache(provider Provider) *KeyCache {
	return &KeyCache{
		provider: provider,
		slots:    make(map[Purpose]cacheEntry),
	}
}

// GetOrLoad returns the cached handle when keyBytes and usage match the slot,
// otherwise it imports a new handle and replaces the slot.
func (c *KeyCache) GetOrLoad(purpose Purpose, usage Usage, keyBytes []byte) (*Key, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.slots[purpose]; ok && e.usage == usage && bytes.Equal(e.keyBytes, keyBytes) {
		return e.handle, nil
	}

	handle, err := c.provider.ImportKey(usage, keyBytes)
	if err != nil {
		return nil, fmt.Errorf("import %s key: %w", purpose, err)
	}
	c.slots[purpose] = cacheEntry{
		usage:    usage,
		keyBytes: append([]byte(nil), keyBytes...),
		handle:   handle,
	}
	return handle, nil
}

// Invalidate drops every cached handle.
func (c *KeyCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.slots)
}
