package security

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkadit/isoperf/emv"
)

const (
	key13   = "13131313131313131313131313131313"
	testKey = "0123456789ABCDEFFEDCBA9876543210"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func importKey(t *testing.T, m *Module, usage Usage, s string) *Key {
	t.Helper()
	k, err := m.ImportKey(usage, mustHex(t, s))
	require.NoError(t, err)
	return k
}

func TestModule_ImportKey(t *testing.T) {
	m := NewModule()

	k := importKey(t, m, UsageZPK, "1313131313131313")
	assert.Equal(t, 8, k.Len())
	assert.Equal(t, "ZPK/64", k.String())

	_, err := m.ImportKey(UsageZPK, make([]byte, 12))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = m.ImportKey(UsageBDK, make([]byte, 8))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = m.ImportKey(UsageIMKAC, make([]byte, 24))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestModule_EncryptData(t *testing.T) {
	m := NewModule()

	zpk := importKey(t, m, UsageZPK, key13)
	out, err := m.EncryptData(zpk, make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, "A8B7B5BD4A67D640", strings.ToUpper(hex.EncodeToString(out)))

	zpk = importKey(t, m, UsageZPK, testKey)
	out, err = m.EncryptData(zpk, mustHex(t, "040043cccddddeee"))
	require.NoError(t, err)
	assert.Equal(t, "DCEECB16D3D6420D", strings.ToUpper(hex.EncodeToString(out)))

	_, err = m.EncryptData(zpk, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidData)

	bdk := importKey(t, m, UsageBDK, key13)
	_, err = m.EncryptData(bdk, make([]byte, 8))
	assert.ErrorIs(t, err, ErrKeyUsage)

	_, err = m.EncryptData(nil, make([]byte, 8))
	assert.ErrorIs(t, err, ErrKeyUsage)
}

func TestModule_DUKPT(t *testing.T) {
	m := NewModule()
	bdk := importKey(t, m, UsageBDK, key13)

	ksn, err := ParseKSN("9876543210E00001", "")
	require.NoError(t, err)

	derived, err := m.DeriveKey(bdk, ksn)
	require.NoError(t, err)
	assert.Equal(t, UsageDerivedPIN, derived.Usage())

	out, err := m.EncryptDerived(derived, mustHex(t, "041277cccddddeee"))
	require.NoError(t, err)
	assert.Equal(t, "C0F224AD1647A8EB", strings.ToUpper(hex.EncodeToString(out)))

	_, err = m.EncryptDerived(bdk, make([]byte, 8))
	assert.ErrorIs(t, err, ErrKeyUsage)
}

func TestDerivePINKey_StandardVector(t *testing.T) {
	key, err := derivePINKey(mustHex(t, testKey), mustHex(t, "FFFF9876543210E00001"))
	require.NoError(t, err)
	assert.Equal(t, "042666B49184CF5C68DE9628D0397B36", strings.ToUpper(hex.EncodeToString(key)))
}

func TestModule_GenerateMAC(t *testing.T) {
	m := NewModule()
	tak := importKey(t, m, UsageTAK, testKey)
	data := []byte("0200ABCDEF")

	tests := []struct {
		algorithm string
		want      string
	}{
		{MACDESede, "9CF1EE7C"},
		{MACISO9797Alg3, "30EFC370FE648DFF"},
		{"iso9797alg3mac", "30EFC370FE648DFF"},
		{MACISO9797Alg3ISO7816, "BD4F744AABA046E0"},
	}
	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			mac, err := m.GenerateMAC(tak, tt.algorithm, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.ToUpper(hex.EncodeToString(mac)))
		})
	}

	mac, err := m.GenerateMAC(tak, MACISO9797Alg3, nil)
	require.NoError(t, err)
	assert.Equal(t, "08D7B4FB629D0885", strings.ToUpper(hex.EncodeToString(mac)))

	_, err = m.GenerateMAC(tak, "HMACSHA256", data)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	single := importKey(t, m, UsageTAK, "0123456789ABCDEF")
	_, err = m.GenerateMAC(single, MACISO9797Alg3, data)
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestModule_CalculateARQC(t *testing.T) {
	m := NewModule()
	base := "000000000001" + "000000000000" + "0554" + "0000000000" + "0554" +
		"230123" + "01" + "11223344" + "5C00" + "0001"

	tests := []struct {
		name string
		imk  string
		pan  string
		psn  string
		skd  emv.SKDMethod
		mkd  emv.MKDMethod
		data string
		want string
	}{
		{"visa cvn10", key13, "4111111111111111", "01", emv.SKDVSDC, emv.MKDOptionA, base + "03000000", "84D785136EFA29D1"},
		{"visa cvn18", key13, "4111111111111111", "01", emv.SKDEMVCommon, emv.MKDOptionA, base + "06011203000000" + "80", "4576E1E877E459EC"},
		{"mchip cvn16", key13, "4111111111111111", "01", emv.SKDMChip, emv.MKDOptionA, base + "A00000000000" + "80", "AC7FFD216E326F06"},
		{"mchip cvn14", key13, "4111111111111111", "01", emv.SKDEMVCommon, emv.MKDOptionA, base + "020000044000" + "80", "AB2400DF6F95530B"},
		{"hsm cvn10", testKey, "4111111111111111", "00", emv.SKDVSDC, emv.MKDOptionA,
			"0000000123000000000000000784800004800008402505220052BF45851800005E06011203", "076C5766F738E9A6"},
		{"option b", key13, "12345678901234567", "01", emv.SKDVSDC, emv.MKDOptionB, "0000000123000000", "331D36D5521823A1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			arqc, err := m.CalculateARQC(ARQCRequest{
				MKD:  tt.mkd,
				SKD:  tt.skd,
				IMK:  importKey(t, m, UsageIMKAC, tt.imk),
				PAN:  tt.pan,
				PSN:  tt.psn,
				ATC:  mustHex(t, "0001"),
				UN:   mustHex(t, "11223344"),
				Data: mustHex(t, tt.data),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.ToUpper(hex.EncodeToString(arqc)))
		})
	}
}

func TestModule_CalculateARQC_Errors(t *testing.T) {
	m := NewModule()
	imk := importKey(t, m, UsageIMKAC, key13)

	_, err := m.CalculateARQC(ARQCRequest{IMK: imk, PAN: "41111111X", PSN: "01", Data: []byte{1}})
	assert.ErrorIs(t, err, ErrInvalidPAN)

	_, err = m.CalculateARQC(ARQCRequest{IMK: imk, SKD: emv.SKDMChip, PAN: "4111111111111111", ATC: []byte{0, 1}, Data: []byte{1}})
	assert.ErrorIs(t, err, ErrInvalidData)

	zpk := importKey(t, m, UsageZPK, key13)
	_, err = m.CalculateARQC(ARQCRequest{IMK: zpk, PAN: "4111111111111111"})
	assert.ErrorIs(t, err, ErrKeyUsage)
}

func TestModule_KeyCheckValue(t *testing.T) {
	m := NewModule()
	for _, k := range []string{"1313131313131313", key13} {
		kcv, err := m.KeyCheckValue(importKey(t, m, UsageZPK, k))
		require.NoError(t, err)
		assert.Equal(t, "a8b7b5", hex.EncodeToString(kcv))
	}
}

func TestModule_EncryptKey(t *testing.T) {
	m := NewModule()
	tests := []struct {
		name  string
		clear string
		kek   string
		want  string
	}{
		{"des under des", "1313131313131313", "1313131313131313", "2911cf5e94d33fe1"},
		{"3des under des", key13, "1313131313131313", "2911cf5e94d33fe12911cf5e94d33fe1"},
		{"des under 3des", "1313131313131313", key13, "2911cf5e94d33fe1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := m.EncryptKey(importKey(t, m, UsageZPK, tt.clear), importKey(t, m, UsageKEK, tt.kek))
			require.NoError(t, err)
			assert.Equal(t, tt.want, hex.EncodeToString(out))
		})
	}
}

func TestModule_CalculateCVV(t *testing.T) {
	m := NewModule()
	cvk := importKey(t, m, UsageCVK, key13)

	for serviceCode, want := range map[string]string{"101": "662", "000": "114", "999": "163"} {
		cvv, err := m.CalculateCVV(cvk, "4444333322221111", "9911", serviceCode)
		require.NoError(t, err)
		assert.Equal(t, want, cvv, serviceCode)
	}

	_, err := m.CalculateCVV(cvk, "4444X", "9911", "101")
	assert.ErrorIs(t, err, ErrInvalidData)
}
