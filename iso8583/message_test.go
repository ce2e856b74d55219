package iso8583

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		path    string
		want    []int
		wantErr error
	}{
		{"0", []int{0}, nil},
		{" 55.2 ", []int{55, 2}, nil},
		{"43.1", []int{43, 1}, nil},
		{"192", []int{192}, nil},
		{"", nil, ErrInvalidPath},
		{"55.x", nil, ErrInvalidPath},
		{"55.0", nil, ErrInvalidPath},
		{"193", nil, ErrInvalidPath},
		{"-1", nil, ErrInvalidPath},
		{"0.1", nil, ErrInvalidPath},
		{"1", nil, ErrInvalidField},
		{"65", nil, ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			segs, err := ParsePath(tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, segs)
		})
	}
}

func TestMessage_SetAndGet(t *testing.T) {
	msg := newTestMessage(t)
	require.NoError(t, msg.SetMTI("0200"))
	require.NoError(t, msg.SetString("11", "000001"))
	require.NoError(t, msg.SetBytes("52", []byte{0xAB, 0xCD}))
	require.NoError(t, msg.SetInt("4", 150, 12))

	assert.Equal(t, "0200", msg.MTI())
	stan, err := msg.GetString("11")
	require.NoError(t, err)
	assert.Equal(t, "000001", stan)

	pin, err := msg.GetString("52")
	require.NoError(t, err)
	assert.Equal(t, "ABCD", pin)

	amount, _ := msg.GetString("4")
	assert.Equal(t, "000000000150", amount)

	_, err = msg.GetString("39")
	assert.ErrorIs(t, err, ErrFieldNotFound)
	assert.ErrorIs(t, msg.SetString("1", "x"), ErrInvalidField)
	assert.ErrorIs(t, msg.SetMTI("02"), ErrInvalidMTI)
}

func TestMessage_ValueAndChildrenReplaceEachOther(t *testing.T) {
	msg := newTestMessage(t)
	require.NoError(t, msg.SetBytes("55", []byte{0x01}))
	require.NoError(t, msg.SetTagged("55.1", "9F26", []byte{0x02}, true))

	_, ok := msg.Get("55")
	assert.False(t, ok, "a composite with subfields has no own value")
	assert.True(t, msg.Has("55"))

	require.NoError(t, msg.SetBytes("55", []byte{0x03}))
	assert.Empty(t, msg.Children("55"))
	value, _ := msg.GetBytes("55")
	assert.Equal(t, []byte{0x03}, value)
}

func TestMessage_ChildrenAndMax(t *testing.T) {
	msg := newTestMessage(t)
	assert.Equal(t, 0, msg.MaxField())

	require.NoError(t, msg.SetMTI("0100"))
	assert.Equal(t, 0, msg.MaxField())

	require.NoError(t, msg.SetTagged("55.3", "9F02", []byte("1"), false))
	require.NoError(t, msg.SetTagged("55.1", "9F03", []byte("0"), false))
	require.NoError(t, msg.SetString("41", "TERM0001"))

	assert.Equal(t, 55, msg.MaxField())
	assert.Equal(t, 3, msg.MaxSubfield("55"))
	assert.Equal(t, 0, msg.MaxSubfield("41"))
	assert.Equal(t, []int{1, 3}, msg.Children("55"))
	assert.Equal(t, []int{0, 41, 55}, msg.Children(""))
	assert.Equal(t, []int{41, 55}, msg.GetPresentFields())
}

func TestMessage_Unset(t *testing.T) {
	msg := newTestMessage(t)
	require.NoError(t, msg.SetTagged("55.1", "9F02", []byte("1"), false))
	require.NoError(t, msg.SetTagged("55.2", "9F03", []byte("0"), false))
	require.NoError(t, msg.SetString("64", "x"))

	require.NoError(t, msg.Unset("55.1"))
	assert.Equal(t, []int{2}, msg.Children("55"))

	require.NoError(t, msg.Unset("64"))
	assert.False(t, msg.HasField(64))
	assert.Equal(t, 55, msg.MaxField())

	require.NoError(t, msg.Unset("100"))
	assert.Error(t, msg.Unset("bad"))
}

func TestMessage_ClearKeepsEnvelope(t *testing.T) {
	p := DefaultPackager()
	msg := NewMessage(WithPackager(p), WithHeader([]byte("HDR")), WithTrailer([]byte("TRL")))
	defer msg.Release()
	require.NoError(t, msg.SetString("11", "1"))

	msg.Clear()
	assert.Empty(t, msg.Children(""))
	assert.Equal(t, []byte("HDR"), msg.Header())
	assert.Equal(t, []byte("TRL"), msg.Trailer())
	assert.Same(t, p, msg.Packager())
}

func TestMessage_CloneIsDeep(t *testing.T) {
	msg := newTestMessage(t)
	require.NoError(t, msg.SetMTI("0200"))
	require.NoError(t, msg.SetTagged("55.1", "9F26", []byte{1, 2}, true))

	clone := msg.Clone()
	defer clone.Release()
	require.NoError(t, clone.SetTagged("55.2", "9F27", []byte{0x80}, true))
	raw, _ := clone.GetBytes("55.1")
	raw[0] = 0xFF

	assert.Equal(t, []int{1}, msg.Children("55"))
	original, _ := msg.GetBytes("55.1")
	assert.Equal(t, []byte{1, 2}, original)
}

func TestMessage_CreateResponse(t *testing.T) {
	msg := newTestMessage(t)
	require.NoError(t, msg.SetMTI("0200"))
	require.NoError(t, msg.SetString("11", "000123"))

	resp, err := msg.CreateResponse("00")
	require.NoError(t, err)
	defer resp.Release()

	assert.Equal(t, "0210", resp.MTI())
	rc, _ := resp.GetString("39")
	assert.Equal(t, "00", rc)
	stan, _ := resp.GetString("11")
	assert.Equal(t, "000123", stan)

	_, err = resp.CreateResponse("00")
	assert.Error(t, err)
}

func TestMessage_IsNetworkManagement(t *testing.T) {
	msg := newTestMessage(t)
	require.NoError(t, msg.SetMTI("0800"))
	assert.True(t, msg.IsNetworkManagement())
	require.NoError(t, msg.SetMTI("0200"))
	assert.False(t, msg.IsNetworkManagement())
}

func TestMessage_Walk(t *testing.T) {
	msg := newTestMessage(t)
	require.NoError(t, msg.SetMTI("0200"))
	require.NoError(t, msg.SetString("43.2", "CITY"))
	require.NoError(t, msg.SetTagged("55.1", "9F26", []byte{1}, true))

	var paths []string
	msg.Walk(func(path string, depth int, tag string, value Field, ok bool) {
		paths = append(paths, path)
	})
	assert.Equal(t, []string{"0", "43", "43.2", "55", "55.1"}, paths)
}

func TestMessage_Dump(t *testing.T) {
	msg := newTestMessage(t)
	require.NoError(t, msg.SetMTI("0200"))
	require.NoError(t, msg.SetTagged("55.1", "9F26", []byte{0xAB}, true))

	want := "<isomsg>\n" +
		"  <field id=\"0\" value=\"0200\"/>\n" +
		"  <isomsg id=\"55\">\n" +
		"    <field id=\"1\" tag=\"9F26\" value=\"AB\" type=\"binary\"/>\n" +
		"  </isomsg>\n" +
		"</isomsg>\n"
	assert.Equal(t, want, msg.DumpString())
}

func TestMessage_LogMasksSensitiveFields(t *testing.T) {
	msg := newTestMessage(t)
	require.NoError(t, msg.SetMTI("0200"))
	require.NoError(t, msg.SetString("2", "4111111111111111"))
	require.NoError(t, msg.SetBytes("52", []byte{1, 2}))
	require.NoError(t, msg.SetString("11", "000001"))

	var buf bytes.Buffer
	l := zerolog.New(&buf)
	l.Info().Object("msg", msg).Send()

	out := buf.String()
	assert.Contains(t, out, `"mti":"0200"`)
	assert.Contains(t, out, `"2":"411111******1111"`)
	assert.Contains(t, out, `"52":"****"`)
	assert.Contains(t, out, `"11":"000001"`)
}

func TestHexdump(t *testing.T) {
	out := Hexdump([]byte("0200"))
	assert.Contains(t, out, "30 32 30 30")
	assert.Contains(t, out, "|0200|")
}

func TestDecodeHexPermissive(t *testing.T) {
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0xFF, 0xFF, 0xFF}, DecodeHexPermissive("1122334455++$$ZZ"))
	assert.Equal(t, []byte{0xAB, 0xCF}, DecodeHexPermissive("abc"))
	assert.Empty(t, DecodeHexPermissive(""))
	assert.Equal(t, "00FF", EncodeHex([]byte{0x00, 0xFF}))
}
