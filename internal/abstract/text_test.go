package abstract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/abstract/s2c"
	"github.com/energizer-project/craftflow/internal/nbt"
)

func TestPlainText(t *testing.T) {
	txt := abstract.PlainText(`say "hi"`)
	assert.JSONEq(t, `{"text":"say \"hi\""}`, string(txt))
	assert.Equal(t, `say "hi"`, txt.Plain())
}

func TestTextPlainFollowsExtra(t *testing.T) {
	txt := abstract.Text(`{"text":"Hello ","extra":[{"text":"big","bold":true}," world"]}`)
	assert.Equal(t, "Hello big world", txt.Plain())
	assert.Equal(t, "disconnect.timeout", abstract.Text(`{"translate":"disconnect.timeout"}`).Plain())
	assert.Equal(t, "bare", abstract.Text(`"bare"`).Plain())
}

func TestTextNBTBridge(t *testing.T) {
	txt := abstract.Text(`{"text":"hi","bold":true}`)
	tag, err := txt.NBT()
	require.NoError(t, err)
	c, ok := tag.(nbt.Compound)
	require.True(t, ok)
	v, _ := c.Get("bold")
	assert.Equal(t, nbt.Byte(1), v)

	back, err := abstract.TextFromNBT(tag)
	require.NoError(t, err)
	assert.JSONEq(t, string(txt), string(back))
}

func TestStatusInfoJSON(t *testing.T) {
	info := &s2c.StatusInfo{
		Version:     s2c.StatusVersion{Name: "1.21", Protocol: 767},
		Players:     &s2c.StatusPlayers{Max: 10, Online: 0},
		Description: abstract.PlainText("motd"),
		Favicon:     []byte("png"),
	}
	b, err := info.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"version": {"name": "1.21", "protocol": 767},
		"players": {"max": 10, "online": 0},
		"description": {"text": "motd"},
		"favicon": "data:image/png;base64,cG5n"
	}`, string(b))

	var minimal s2c.StatusInfo
	require.NoError(t, minimal.UnmarshalJSON([]byte(`{"version":{"name":"x","protocol":5},"description":"plain"}`)))
	assert.Nil(t, minimal.Players)
	assert.Equal(t, abstract.Text(`"plain"`), minimal.Description)
	assert.Equal(t, "plain", minimal.Description.Plain())

	var bad s2c.StatusInfo
	var semantic *abstract.SemanticError
	err = bad.UnmarshalJSON([]byte(`{"version":{"name":"x","protocol":5},"favicon":"http://nope"}`))
	assert.ErrorAs(t, err, &semantic)
}
