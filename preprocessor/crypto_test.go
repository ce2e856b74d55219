package preprocessor

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mkadit/isoperf/builder"
	"github.com/mkadit/isoperf/internal/mock"
	"github.com/mkadit/isoperf/iso8583"
	"github.com/mkadit/isoperf/security"
)

const (
	key13   = "13131313131313131313131313131313"
	testKey = "0123456789ABCDEFFEDCBA9876543210"
)

func newBuilder(t *testing.T, fields ...builder.FieldSpec) *builder.MessageBuilder {
	t.Helper()
	b := builder.New(nil)
	_, err := b.Define(append([]builder.FieldSpec{builder.Field("0", "0200")}, fields...))
	require.NoError(t, err)
	return b
}

func iccFields(iad string, extra ...builder.FieldSpec) []builder.FieldSpec {
	fields := []builder.FieldSpec{
		builder.TaggedField("55.1", "9F02", "000000000001"),
		builder.TaggedField("55.2", "9F03", "000000000000"),
		builder.TaggedField("55.3", "9F1A", "0554"),
		builder.TaggedField("55.4", "95", "0000000000"),
		builder.TaggedField("55.5", "5F2A", "0554"),
		builder.TaggedField("55.6", "9A", "230123"),
		builder.TaggedField("55.7", "9C", "01"),
		builder.TaggedField("55.8", "9F37", "11223344"),
		builder.TaggedField("55.9", "82", "5C00"),
		builder.TaggedField("55.10", "9F36", "0001"),
		builder.TaggedField("55.11", "9F10", iad),
	}
	return append(fields, extra...)
}

func TestApply_NothingConfigured(t *testing.T) {
	b := newBuilder(t, builder.Field("11", "000001"), builder.Field("52", "040043CCCDDDDEEE"))
	res := New(security.NewModule()).Apply(b, Config{})

	for _, s := range res.Stages() {
		assert.Equal(t, StatusSkipped, s.Status, s.Stage)
		assert.NoError(t, s.Err)
	}
	assert.NoError(t, res.Err())
	for _, f := range []string{"64", "128", "192"} {
		assert.False(t, b.Message().Has(f), f)
	}
	pin, _ := b.Message().GetString("52")
	assert.Equal(t, "040043CCCDDDDEEE", pin)
}

func TestApply_ZonePIN(t *testing.T) {
	b := newBuilder(t, builder.Field("52", "040043cccddddeee"))
	res := New(security.NewModule()).Apply(b, Config{PINField: "52", PINKey: testKey})

	require.Equal(t, StatusSucceeded, res.PIN.Status, res.PIN.Err)
	assert.Equal(t, "52", res.PIN.Field)
	pin, _ := b.Message().GetString("52")
	assert.Equal(t, "DCEECB16D3D6420D", pin)
}

func TestApply_DUKPT(t *testing.T) {
	b := newBuilder(t,
		builder.Field("52", "041277cccddddeee"),
		builder.Field("53", "9876543210E00001"),
	)
	res := New(security.NewModule()).Apply(b, Config{PINField: "52", PINKey: key13, KSNField: "53"})

	require.Equal(t, StatusSucceeded, res.PIN.Status, res.PIN.Err)
	pin, _ := b.Message().GetString("52")
	assert.Equal(t, "C0F224AD1647A8EB", pin)
	assert.Len(t, pin, len("041277cccddddeee"))
}

func TestApply_DUKPTExpandedBDK(t *testing.T) {
	b := newBuilder(t,
		builder.Field("52", "041277cccddddeee"),
		builder.Field("53", "9876543210E00001"),
	)
	res := New(security.NewModule()).Apply(b, Config{PINField: "52", PINKey: key13 + "1313131313131313", KSNField: "53"})

	require.Equal(t, StatusSucceeded, res.PIN.Status, res.PIN.Err)
	assert.NoError(t, res.Err())
	pin, _ := b.Message().GetString("52")
	assert.Equal(t, "C0F224AD1647A8EB", pin)
}

func TestApply_PINConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields []builder.FieldSpec
		cfg    Config
	}{
		{"odd key length", []builder.FieldSpec{builder.Field("52", "041277cccddddeee")},
			Config{PINField: "52", PINKey: "1313131313"}},
		{"non hex key", []builder.FieldSpec{builder.Field("52", "041277cccddddeee")},
			Config{PINField: "52", PINKey: "ZZ13131313131313"}},
		{"single length BDK", []builder.FieldSpec{builder.Field("52", "041277cccddddeee"), builder.Field("53", "9876543210E00001")},
			Config{PINField: "52", PINKey: "1313131313131313", KSNField: "53"}},
		{"triple length BDK", []builder.FieldSpec{builder.Field("52", "041277cccddddeee"), builder.Field("53", "9876543210E00001")},
			Config{PINField: "52", PINKey: key13 + "0123456789ABCDEF", KSNField: "53"}},
		{"missing KSN", []builder.FieldSpec{builder.Field("52", "041277cccddddeee")},
			Config{PINField: "52", PINKey: key13, KSNField: "53"}},
		{"bad descriptor", []builder.FieldSpec{builder.Field("52", "041277cccddddeee"), builder.Field("53", "9876543210E00001")},
			Config{PINField: "52", PINKey: key13, KSNField: "53", KSNDescriptor: "6-5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t, tt.fields...)
			cfg := tt.cfg
			cfg.MACAlgorithm, cfg.MACKey = security.MACISO9797Alg3, testKey

			res := New(security.NewModule()).Apply(b, cfg)

			assert.Equal(t, StatusFailed, res.PIN.Status)
			var ce *iso8583.ConfigurationError
			assert.True(t, errors.As(res.PIN.Err, &ce), "%v", res.PIN.Err)
			assert.NoError(t, res.Err())

			pin, _ := b.Message().GetString("52")
			assert.Equal(t, "041277CCCDDDDEEE", pin, "PIN block untouched")
			assert.Equal(t, StatusSucceeded, res.MAC.Status, "later stages still run")
		})
	}
}

func TestApply_PINSkippedWithoutValue(t *testing.T) {
	b := newBuilder(t, builder.Field("11", "000001"))
	res := New(security.NewModule()).Apply(b, Config{PINField: "52", PINKey: testKey})
	assert.Equal(t, StatusSkipped, res.PIN.Status)
	assert.False(t, b.Message().Has("52"))
}

func TestApply_ARQC(t *testing.T) {
	tests := []struct {
		name string
		iad  string
		want string
	}{
		{"visa cvn10", "06010A03000000", "84D785136EFA29D1"},
		{"visa cvn18", "06011203000000", "4576E1E877E459EC"},
		{"mchip cvn16", "0210A00000000000000000000000000000FF", "AC7FFD216E326F06"},
		{"mchip cvn22", "0114020000044000DAC10000000000000000", "AB2400DF6F95530B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t, iccFields(tt.iad)...)
			crypto := New(security.NewModule())
			cfg := Config{ICCField: "55", IMKAC: key13, PAN: "4111111111111111", PSN: "01"}

			res := crypto.Apply(b, cfg)
			require.Equal(t, StatusSucceeded, res.ARQC.Status, res.ARQC.Err)
			assert.Equal(t, "55.12", res.ARQC.Field)

			tag, _ := b.Message().Tag("55.12")
			assert.Equal(t, "9F26", tag)
			arqc, _ := b.Message().GetString("55.12")
			assert.Equal(t, tt.want, arqc)

			// rerun: same cryptogram, next slot
			res = crypto.Apply(b, cfg)
			require.Equal(t, StatusSucceeded, res.ARQC.Status)
			assert.Equal(t, "55.13", res.ARQC.Field)
			again, _ := b.Message().GetString("55.13")
			assert.Equal(t, arqc, again)
		})
	}
}

func TestApply_ARQCTagsBeforeConfig(t *testing.T) {
	b := newBuilder(t, iccFields("06010A03000000",
		builder.TaggedField("55.12", "5A", "4111111111111111"),
		builder.TaggedField("55.13", "5F34", "01"),
	)...)
	res := New(security.NewModule()).Apply(b, Config{ICCField: "55", IMKAC: key13, PAN: "5500000000000004", PSN: "09"})

	require.Equal(t, StatusSucceeded, res.ARQC.Status, res.ARQC.Err)
	arqc, _ := b.Message().GetString("55.14")
	assert.Equal(t, "84D785136EFA29D1", arqc)
}

func TestApply_ARQCExplicitInput(t *testing.T) {
	b := newBuilder(t, builder.TaggedField("55.1", "9F10", "06010A03000000"))
	res := New(security.NewModule()).Apply(b, Config{
		ICCField: "55",
		IMKAC:    testKey,
		PAN:      "4111111111111111",
		PSN:      "00",
		TxnData:  "0000000123000000000000000784800004800008402505220052BF45851800005E0601",
		Padding:  "1203",
	})

	require.Equal(t, StatusSucceeded, res.ARQC.Status, res.ARQC.Err)
	arqc, _ := b.Message().GetString("55.2")
	assert.Equal(t, "076C5766F738E9A6", arqc)
}

func TestApply_ARQCFailures(t *testing.T) {
	tests := []struct {
		name   string
		fields []builder.FieldSpec
		cfg    Config
		parse  bool
	}{
		{"bad IAD", iccFields("FFFF"), Config{ICCField: "55", IMKAC: key13, PAN: "4111111111111111"}, true},
		{"missing IAD", iccFields("06010A03000000")[:10], Config{ICCField: "55", IMKAC: key13, PAN: "4111111111111111"}, true},
		{"missing base tag", iccFields("06010A03000000")[1:], Config{ICCField: "55", IMKAC: key13, PAN: "4111111111111111"}, true},
		{"short IMK", iccFields("06010A03000000"), Config{ICCField: "55", IMKAC: "1313131313131313", PAN: "4111111111111111"}, false},
		{"no PAN", iccFields("06010A03000000"), Config{ICCField: "55", IMKAC: key13}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t, tt.fields...)
			before := b.Message().MaxSubfield("55")
			cfg := tt.cfg
			cfg.MACAlgorithm, cfg.MACKey = security.MACISO9797Alg3, testKey

			res := New(security.NewModule()).Apply(b, cfg)

			assert.Equal(t, StatusFailed, res.ARQC.Status)
			if tt.parse {
				var pe *iso8583.ParseError
				assert.True(t, errors.As(res.ARQC.Err, &pe), "%v", res.ARQC.Err)
			} else {
				var ce *iso8583.ConfigurationError
				assert.True(t, errors.As(res.ARQC.Err, &ce), "%v", res.ARQC.Err)
			}
			assert.Equal(t, before, b.Message().MaxSubfield("55"))
			assert.Equal(t, StatusSucceeded, res.MAC.Status)
		})
	}
}

func TestApply_ARQCSkipped(t *testing.T) {
	b := newBuilder(t, builder.Field("11", "000001"))
	res := New(security.NewModule()).Apply(b, Config{ICCField: "55", IMKAC: key13})
	assert.Equal(t, StatusSkipped, res.ARQC.Status)

	b = newBuilder(t, iccFields("06010A03000000")...)
	res = New(security.NewModule()).Apply(b, Config{ICCField: "55"})
	assert.Equal(t, StatusSkipped, res.ARQC.Status)
}

func TestApply_MACPlacement(t *testing.T) {
	tests := []struct {
		highest builder.FieldSpec
		want    string
	}{
		{builder.Field("40", "101"), "64"},
		{builder.Field("70", "301"), "128"},
		{builder.Field("130", "extended"), "192"},
	}
	for _, tt := range tests {
		t.Run(tt.highest.Path, func(t *testing.T) {
			b := newBuilder(t, builder.Field("11", "000001"), tt.highest)
			res := New(security.NewModule()).Apply(b, Config{MACAlgorithm: security.MACISO9797Alg3, MACKey: testKey})

			require.Equal(t, StatusSucceeded, res.MAC.Status, res.MAC.Err)
			assert.Equal(t, tt.want, res.MAC.Field)
			assert.Equal(t, []string{tt.want}, macFields(b.Message()))
		})
	}

	b := newBuilder(t)
	res := New(security.NewModule()).Apply(b, Config{MACAlgorithm: security.MACISO9797Alg3, MACKey: testKey})
	assert.Equal(t, "64", res.MAC.Field)
}

func macFields(msg *iso8583.Message) []string {
	var present []string
	for _, f := range []string{"64", "128", "192"} {
		if msg.Has(f) {
			present = append(present, f)
		}
	}
	return present
}

func TestApply_MACValue(t *testing.T) {
	module := security.NewModule()
	tak, err := module.ImportKey(security.UsageTAK, mustHex(t, testKey))
	require.NoError(t, err)

	for _, algorithm := range []string{security.MACDESede, security.MACISO9797Alg3, security.MACISO9797Alg3ISO7816} {
		t.Run(algorithm, func(t *testing.T) {
			b := builder.New(nil, builder.WithTrailer([]byte{0x03}))
			_, err := b.Define([]builder.FieldSpec{builder.Field("0", "0200"), builder.Field("11", "000001"), builder.Field("41", "TERM0001")})
			require.NoError(t, err)

			res := New(module).Apply(b, Config{MACAlgorithm: algorithm, MACKey: testKey})
			require.Equal(t, StatusSucceeded, res.MAC.Status, res.MAC.Err)

			packed, err := b.Message().Pack()
			require.NoError(t, err)
			want, err := module.GenerateMAC(tak, algorithm, packed[:len(packed)-1-8])
			require.NoError(t, err)

			got, _ := b.Message().GetString("64")
			expected := iso8583.EncodeHex(want)
			for len(expected) < 16 {
				expected += "F"
			}
			assert.Equal(t, expected, got)
		})
	}
}

func TestApply_MACDeterminism(t *testing.T) {
	cfg := Config{MACAlgorithm: security.MACISO9797Alg3, MACKey: testKey}
	crypto := New(security.NewModule())

	b := newBuilder(t, builder.Field("11", "000001"))
	crypto.Apply(b, cfg)
	first, _ := b.Message().GetString("64")

	crypto.Apply(b, cfg)
	second, _ := b.Message().GetString("64")
	assert.Equal(t, first, second)

	_, err := b.Extend([]builder.FieldSpec{builder.Field("11", "000002")})
	require.NoError(t, err)
	crypto.Apply(b, cfg)
	third, _ := b.Message().GetString("64")
	assert.NotEqual(t, first, third)
}

func TestApply_MACConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"single length key", Config{MACAlgorithm: security.MACISO9797Alg3, MACKey: "0123456789ABCDEF"}},
		{"text field", Config{MACAlgorithm: security.MACISO9797Alg3, MACKey: testKey, MACField: 11}},
		{"variable field", Config{MACAlgorithm: security.MACISO9797Alg3, MACKey: testKey, MACField: 55}},
		{"undeclared field", Config{MACAlgorithm: security.MACISO9797Alg3, MACKey: testKey, MACField: 65}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t, builder.Field("11", "000001"))
			res := New(security.NewModule()).Apply(b, tt.cfg)

			assert.Equal(t, StatusFailed, res.MAC.Status)
			var ce *iso8583.ConfigurationError
			assert.True(t, errors.As(res.MAC.Err, &ce), "%v", res.MAC.Err)
			assert.Empty(t, macFields(b.Message()))
			stan, _ := b.Message().GetString("11")
			assert.Equal(t, "000001", stan)
		})
	}
}

func TestApply_KeyCacheIdentity(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mock.NewMockProvider(ctrl)
	crypto := New(provider)
	module := security.NewModule()
	handle, err := module.ImportKey(security.UsageTAK, mustHex(t, testKey))
	require.NoError(t, err)
	mac := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	provider.EXPECT().ImportKey(security.UsageTAK, mustHex(t, testKey)).Return(handle, nil).Times(1)
	provider.EXPECT().GenerateMAC(handle, security.MACISO9797Alg3, gomock.Any()).Return(mac, nil).Times(3)

	b := newBuilder(t, builder.Field("11", "000001"))
	cfg := Config{MACAlgorithm: security.MACISO9797Alg3, MACKey: testKey}
	crypto.Apply(b, cfg)
	crypto.Apply(b, cfg)
	crypto.Apply(b, cfg)

	other, err := module.ImportKey(security.UsageTAK, mustHex(t, key13))
	require.NoError(t, err)
	provider.EXPECT().ImportKey(security.UsageTAK, mustHex(t, key13)).Return(other, nil).Times(1)
	provider.EXPECT().GenerateMAC(other, security.MACISO9797Alg3, gomock.Any()).Return(mac, nil).Times(1)

	cfg.MACKey = key13
	res := crypto.Apply(b, cfg)
	require.Equal(t, StatusSucceeded, res.MAC.Status)
	got, _ := b.Message().GetString("64")
	assert.Equal(t, "0102030405060708", got)
}

func TestApply_ProviderFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mock.NewMockProvider(ctrl)
	hsmDown := errors.New("hsm unavailable")

	gomock.InOrder(
		provider.EXPECT().ImportKey(security.UsageZPK, gomock.Any()).Return(&security.Key{}, nil),
		provider.EXPECT().EncryptData(gomock.Any(), gomock.Any()).Return(nil, hsmDown),
		provider.EXPECT().ImportKey(security.UsageTAK, gomock.Any()).Return(&security.Key{}, nil),
		provider.EXPECT().GenerateMAC(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, hsmDown),
	)

	b := newBuilder(t, builder.Field("11", "000001"), builder.Field("52", "040043cccddddeee"))
	res := New(provider).Apply(b, Config{
		PINField: "52", PINKey: testKey,
		MACAlgorithm: security.MACISO9797Alg3, MACKey: testKey,
	})

	assert.Equal(t, StatusFailed, res.PIN.Status)
	assert.Equal(t, StatusFailed, res.MAC.Status)
	assert.ErrorIs(t, res.Err(), hsmDown)
	var pe *iso8583.ProviderError
	assert.True(t, errors.As(res.Err(), &pe))

	pin, _ := b.Message().GetString("52")
	assert.Equal(t, "040043CCCDDDDEEE", pin)
	assert.Empty(t, macFields(b.Message()), "no partial MAC is left behind")
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}
