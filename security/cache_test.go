package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	*Module
	imports int
	fail    bool
}

func (p *countingProvider) ImportKey(usage Usage, clear []byte) (*Key, error) {
	p.imports++
	if p.fail {
		return nil, errors.New("hsm offline")
	}
	return p.Module.ImportKey(usage, clear)
}

func TestKeyCache_GetOrLoad(t *testing.T) {
	provider := &countingProvider{Module: NewModule()}
	cache := NewKeyCache(provider)
	key := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	first, err := cache.GetOrLoad(PurposeMAC, UsageTAK, key)
	require.NoError(t, err)
	second, err := cache.GetOrLoad(PurposeMAC, UsageTAK, append([]byte(nil), key...))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, provider.imports)

	// purposes have separate slots
	_, err = cache.GetOrLoad(PurposePIN, UsageZPK, key)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.imports)

	// a usage change on the same bytes re-imports
	bdk, err := cache.GetOrLoad(PurposePIN, UsageBDK, key)
	require.NoError(t, err)
	assert.Equal(t, UsageBDK, bdk.Usage())
	assert.Equal(t, 3, provider.imports)

	key[0] = 0xFF
	third, err := cache.GetOrLoad(PurposeMAC, UsageTAK, key)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 4, provider.imports)

	cache.Invalidate()
	_, err = cache.GetOrLoad(PurposeMAC, UsageTAK, key)
	require.NoError(t, err)
	assert.Equal(t, 5, provider.imports)
}

func TestKeyCache_ImportFailure(t *testing.T) {
	provider := &countingProvider{Module: NewModule(), fail: true}
	cache := NewKeyCache(provider)

	_, err := cache.GetOrLoad(PurposeARQC, UsageIMKAC, make([]byte, 16))
	assert.ErrorContains(t, err, "import ARQC key")

	provider.fail = false
	_, err = cache.GetOrLoad(PurposeARQC, UsageIMKAC, make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, 2, provider.imports)
}
