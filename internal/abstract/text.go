package abstract

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/energizer-project/craftflow/internal/nbt"
)

// Text is a chat component in its JSON form, for example
// {"text":"Hello","color":"gold"} or a bare JSON string.
type Text string

// PlainText builds a component holding s with no styling.
func PlainText(s string) Text {
	b, _ := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: s})
	return Text(b)
}

// NBT converts the component to the NBT form sent from 1.20.3 on.
func (t Text) NBT() (nbt.Value, error) {
	return nbt.FromJSON([]byte(t))
}

// TextFromNBT converts an NBT component back to JSON.
func TextFromNBT(v nbt.Value) (Text, error) {
	b, err := nbt.ToJSON(v)
	if err != nil {
		return "", err
	}
	return Text(b), nil
}

// MarshalJSON embeds the component verbatim.
func (t Text) MarshalJSON() ([]byte, error) {
	if t == "" {
		return []byte(`""`), nil
	}
	return []byte(t), nil
}

// UnmarshalJSON keeps the raw component.
func (t *Text) UnmarshalJSON(b []byte) error {
	*t = Text(append([]byte(nil), b...))
	return nil
}

// Plain returns the unstyled text content, following "extra" children.
// Translatable components fall back to their key.
func (t Text) Plain() string {
	var v any
	if err := json.Unmarshal([]byte(t), &v); err != nil {
		return string(t)
	}
	var sb strings.Builder
	collectPlain(&sb, v)
	return sb.String()
}

func collectPlain(sb *strings.Builder, v any) {
	switch c := v.(type) {
	case string:
		sb.WriteString(c)
	case []any:
		for _, x := range c {
			collectPlain(sb, x)
		}
	case map[string]any:
		if s, ok := c["text"].(string); ok {
			sb.WriteString(s)
		} else if s, ok := c["translate"].(string); ok {
			sb.WriteString(s)
		}
		if extra, ok := c["extra"].([]any); ok {
			for _, x := range extra {
				collectPlain(sb, x)
			}
		}
	}
}
