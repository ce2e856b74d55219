package security

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePINBlock(t *testing.T) {
	block, err := CalculatePINBlock("0000", FormatISO0, "4444333322221111")
	require.NoError(t, err)
	assert.Equal(t, "040043cccddddeee", hex.EncodeToString(block))

	block, err = CalculatePINBlock("1234", FormatISO2, "")
	require.NoError(t, err)
	assert.Equal(t, "241234FFFFFFFFFF", strings.ToUpper(hex.EncodeToString(block)))

	block, err = CalculatePINBlock("123456", FormatISO1, "")
	require.NoError(t, err)
	text := hex.EncodeToString(block)
	assert.Equal(t, "16123456", text[:8])
	assert.True(t, isDigits(text[8:]), text)

	block, err = CalculatePINBlock("1234", FormatISO3, "4444333322221111")
	require.NoError(t, err)
	account, err := accountBlock("4444333322221111")
	require.NoError(t, err)
	clear := strings.ToUpper(hex.EncodeToString(xorBytes(block, account)))
	assert.Equal(t, "341234", clear[:6])
	assert.Equal(t, -1, strings.IndexAny(clear[6:], "0123456789"), clear)
}

func TestCalculatePINBlock_Errors(t *testing.T) {
	tests := []struct {
		name   string
		pin    string
		format PINBlockFormat
		pan    string
		err    error
	}{
		{"short pin", "123", FormatISO0, "4444333322221111", ErrInvalidPIN},
		{"alpha pin", "12a4", FormatISO0, "4444333322221111", ErrInvalidPIN},
		{"short pan", "1234", FormatISO0, "444433332222", ErrInvalidPAN},
		{"unknown format", "1234", PINBlockFormat(2), "4444333322221111", ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculatePINBlock(tt.pin, tt.format, tt.pan)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseKSN(t *testing.T) {
	ksn, err := ParseKSN("9876543210E00001", "6-5-5")
	require.NoError(t, err)
	assert.Equal(t, KSN{KeySetID: "987654", DeviceID: "3210E", Counter: "00001"}, ksn)

	raw, err := ksn.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "FFFF9876543210E00001", strings.ToUpper(hex.EncodeToString(raw)))

	padded, err := ParseKSN("ffff9876543210e00001", "")
	require.NoError(t, err)
	assert.Equal(t, ksn, padded)

	_, err = ParseKSN("9876543210E00001", "6-5")
	assert.ErrorIs(t, err, ErrInvalidKSN)
	_, err = ParseKSN("98765", "6-5-5")
	assert.ErrorIs(t, err, ErrInvalidKSN)
	_, err = ParseKSN("98765432X0E00001", "6-5-5")
	assert.ErrorIs(t, err, ErrInvalidKSN)
	_, err = ParseKSN("9876543210E00001", "10-10-10")
	assert.ErrorIs(t, err, ErrInvalidKSN)
}

func TestGenerateKey(t *testing.T) {
	for _, bits := range []int{64, 128, 192} {
		key, err := GenerateKey(bits)
		require.NoError(t, err)
		assert.Len(t, key, bits/4)
		assert.Equal(t, strings.ToLower(key), key)

		raw, err := hex.DecodeString(key)
		require.NoError(t, err)
		for _, b := range raw {
			assert.Equal(t, b, oddParity(b))
		}
	}

	key, err := GenerateKey(100)
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
	assert.Empty(t, key)

	assert.Equal(t, "DES", KeyAlgorithm("1313131313131313"))
	assert.Equal(t, "DESede", KeyAlgorithm(key13))
}
