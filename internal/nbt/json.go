package nbt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// FromJSON converts a JSON document, typically a text component, into an NBT
// value. Object key order is preserved. Booleans become bytes and mixed lists
// are wrapped into compounds with an empty key.
func FromJSON(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := fromToken(dec, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to convert json to nbt: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("failed to convert json to nbt: trailing data")
	}
	return v, nil
}

func fromToken(dec *json.Decoder, depth int) (Value, error) {
	if depth > maxDepth {
		return nil, ErrTooDeep
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case string:
		return String(t), nil
	case bool:
		if t {
			return Byte(1), nil
		}
		return Byte(0), nil
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			if i >= math.MinInt32 && i <= math.MaxInt32 {
				return Int(i), nil
			}
			return Long(i), nil
		}
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return nil, err
		}
		return Double(f), nil
	case json.Delim:
		switch t {
		case '{':
			c := Compound{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", kt)
				}
				v, err := fromToken(dec, depth+1)
				if err != nil {
					return nil, err
				}
				c = append(c, Entry{Name: key, Value: v})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return c, nil
		case '[':
			var items []Value
			for dec.More() {
				v, err := fromToken(dec, depth+1)
				if err != nil {
					return nil, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return listOf(items), nil
		}
	case nil:
		return nil, errors.New("null has no nbt representation")
	}
	return nil, fmt.Errorf("unexpected json token %v", tok)
}

func listOf(items []Value) List {
	if l, err := NewList(items...); err == nil {
		return l
	}
	wrapped := make([]Value, len(items))
	for i, it := range items {
		if c, ok := it.(Compound); ok {
			wrapped[i] = c
			continue
		}
		wrapped[i] = Compound{{Name: "", Value: it}}
	}
	return List{Elem: TagCompound, Items: wrapped}
}

// ToJSON renders an NBT value as compact JSON, the inverse of FromJSON.
func ToJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, fmt.Errorf("failed to convert nbt to json: %w", err)
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case String:
		b, err := json.Marshal(string(t))
		if err != nil {
			return err
		}
		buf.Write(b)
	case Byte:
		switch t {
		case 0:
			buf.WriteString("false")
		case 1:
			buf.WriteString("true")
		default:
			buf.WriteString(strconv.Itoa(int(t)))
		}
	case Short:
		buf.WriteString(strconv.Itoa(int(t)))
	case Int:
		buf.WriteString(strconv.Itoa(int(t)))
	case Long:
		buf.WriteString(strconv.FormatInt(int64(t), 10))
	case Float:
		buf.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 32))
	case Double:
		buf.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 64))
	case Compound:
		buf.WriteByte('{')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(e.Name)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := writeJSON(buf, e.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case List:
		buf.WriteByte('[')
		for i, it := range t.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if c, ok := it.(Compound); ok && len(c) == 1 && c[0].Name == "" {
				it = c[0].Value
			}
			if err := writeJSON(buf, it); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case ByteArray:
		buf.WriteByte('[')
		for i, x := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Itoa(int(int8(x))))
		}
		buf.WriteByte(']')
	case IntArray:
		buf.WriteByte('[')
		for i, x := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Itoa(int(x)))
		}
		buf.WriteByte(']')
	case LongArray:
		buf.WriteByte('[')
		for i, x := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.FormatInt(x, 10))
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("%w: %T", ErrInvalidTag, v)
	}
	return nil
}
