package nbt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCompound() Compound {
	return Compound{
		{Name: "name", Value: String("minecraft:overworld")},
		{Name: "id", Value: Int(0)},
		{Name: "element", Value: Compound{
			{Name: "piglin_safe", Value: Byte(0)},
			{Name: "height", Value: Int(384)},
			{Name: "coordinate_scale", Value: Double(1.0)},
			{Name: "ambient_light", Value: Float(0.5)},
			{Name: "fixed_time", Value: Long(6000)},
			{Name: "min_y", Value: Short(-64)},
			{Name: "seeds", Value: LongArray{1, -2, 3}},
			{Name: "ints", Value: IntArray{7, 8}},
			{Name: "raw", Value: ByteArray{0xFF, 0x01}},
			{Name: "tags", Value: List{Elem: TagString, Items: []Value{String("a"), String("b")}}},
			{Name: "empty", Value: List{Elem: TagEnd}},
		}},
	}
}

func TestNetworkRoundTrip(t *testing.T) {
	in := sampleCompound()
	data, err := Marshal(in)
	require.NoError(t, err)

	out, n, err := DecodeNetwork(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, in, out)

	again, err := Marshal(out)
	require.NoError(t, err)
	assert.Equal(t, data, again, "re-encoding must be byte-identical")
}

func TestNamedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeNamed(&buf, "root", sampleCompound()))

	name, v, n, err := DecodeNamed(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "root", name)
	assert.Equal(t, buf.Len(), n)
	assert.Equal(t, sampleCompound(), v)
}

func TestEndRootIsNil(t *testing.T) {
	v, n, err := DecodeNetwork([]byte{0x00, 0xAA})
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, 1, n)

	data, err := Marshal(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, data)
}

func TestDecodeTruncated(t *testing.T) {
	data, err := Marshal(sampleCompound())
	require.NoError(t, err)
	for i := 0; i < len(data); i++ {
		_, _, err := DecodeNetwork(data[:i])
		assert.Error(t, err, "prefix of %d bytes", i)
	}
}

func TestDecodeInvalidTag(t *testing.T) {
	_, _, err := DecodeNetwork([]byte{0x42})
	assert.ErrorIs(t, err, ErrInvalidTag)
}

func TestModifiedUTF8(t *testing.T) {
	cases := []string{"plain", "nul\x00inside", "é§", "emoji 😀"}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			enc := encodeMUTF8(s)
			assert.NotContains(t, enc, byte(0))
			dec, err := decodeMUTF8(enc)
			require.NoError(t, err)
			assert.Equal(t, s, dec)
		})
	}
	// supplementary characters take two three-byte surrogates
	assert.Len(t, encodeMUTF8("😀"), 6)
}

func TestCompoundSet(t *testing.T) {
	c := Compound{}
	c.Set("a", Int(1))
	c.Set("b", Int(2))
	c.Set("a", Int(3))
	require.Len(t, c, 2)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, Int(3), v)
	_, ok = c.GetString("a")
	assert.False(t, ok)
}

func TestNewListRejectsMixed(t *testing.T) {
	_, err := NewList(Int(1), String("x"))
	assert.Error(t, err)
}

func TestJSONBridge(t *testing.T) {
	cases := []string{
		`"hello"`,
		`{"text":"bye","bold":true,"color":"red"}`,
		`{"text":"","extra":[{"text":"a"},{"text":"b","italic":false}]}`,
		`{"translate":"chat.type","with":["x",{"text":"y"}]}`,
	}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			v, err := FromJSON([]byte(c))
			require.NoError(t, err)
			out, err := ToJSON(v)
			require.NoError(t, err)
			assert.JSONEq(t, c, string(out))
		})
	}
}

func TestJSONNumbers(t *testing.T) {
	v, err := FromJSON([]byte(`{"i":5,"l":5000000000,"d":1.5}`))
	require.NoError(t, err)
	c := v.(Compound)
	assert.Equal(t, Int(5), c[0].Value)
	assert.Equal(t, Long(5000000000), c[1].Value)
	assert.Equal(t, Double(1.5), c[2].Value)
}

func TestFromJSONRejectsTrailingData(t *testing.T) {
	_, err := FromJSON([]byte(`"a" "b"`))
	assert.Error(t, err)
}
