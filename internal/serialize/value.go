package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Kind is the category of a serialized value.
type Kind uint8

const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
	KindObject
	KindCircular
	KindDepthLimited
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindObject:
		return "object"
	case KindCircular:
		return "circular"
	case KindDepthLimited:
		return "depth_limited"
	case KindOpaque:
		return "opaque"
	}
	return "unknown"
}

// Wire markers for the non-plain variants.
const (
	markerType     = "__type__"
	markerCircular = "__circular__"
	markerDepth    = "__depth_limited__"
	markerOpaque   = "__opaque__"
)

// Field is one named entry of a mapping or object snapshot.
type Field struct {
	Name  string
	Value Value
}

// Value is a bounded, cycle-free snapshot of a runtime value. Exactly the
// fields belonging to Kind are meaningful.
type Value struct {
	Kind   Kind
	Scalar any     // nil, bool, int64, float64 or string
	Items  []Value // KindSequence
	Fields []Field // KindMapping and KindObject, in source order
	Type   string  // KindObject
	Ref    uint64  // KindCircular
	Text   string  // KindOpaque
}

// Scalar wraps nil, bool, int64, float64 or string.
func Scalar(v any) Value { return Value{Kind: KindScalar, Scalar: v} }

func Sequence(items []Value) Value { return Value{Kind: KindSequence, Items: items} }

func Mapping(fields []Field) Value { return Value{Kind: KindMapping, Fields: fields} }

// Object is a snapshot of a composite value with named fields.
func Object(typ string, fields []Field) Value {
	return Value{Kind: KindObject, Type: typ, Fields: fields}
}

// CircularRef marks a value already visited from the same root.
func CircularRef(id uint64) Value { return Value{Kind: KindCircular, Ref: id} }

// DepthLimited replaces a subtree below the depth limit.
func DepthLimited() Value { return Value{Kind: KindDepthLimited} }

// Opaque is the textual fallback for values with no structured form.
func Opaque(text string) Value { return Value{Kind: KindOpaque, Text: text} }

// Field returns the named field of a mapping or object snapshot.
func (v Value) Field(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Equal reports whether two snapshots are structurally identical.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindScalar:
		return v.Scalar == o.Scalar
	case KindSequence:
		if len(v.Items) != len(o.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	case KindMapping, KindObject:
		if v.Type != o.Type || len(v.Fields) != len(o.Fields) {
			return false
		}
		for i := range v.Fields {
			if v.Fields[i].Name != o.Fields[i].Name || !v.Fields[i].Value.Equal(o.Fields[i].Value) {
				return false
			}
		}
		return true
	case KindCircular:
		return v.Ref == o.Ref
	case KindOpaque:
		return v.Text == o.Text
	}
	return true
}

// MarshalJSON writes the wire form. Mapping and object fields keep their
// order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.Kind {
	case KindScalar:
		return encodeScalar(buf, v.Scalar)
	case KindSequence:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case KindMapping, KindObject:
		buf.WriteByte('{')
		first := true
		if v.Kind == KindObject {
			writeKey(buf, markerType)
			writeString(buf, v.Type)
			first = false
		}
		for _, f := range v.Fields {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			writeKey(buf, f.Name)
			if err := f.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case KindCircular:
		fmt.Fprintf(buf, `{"%s":%d}`, markerCircular, v.Ref)
		return nil
	case KindDepthLimited:
		fmt.Fprintf(buf, `{"%s":true}`, markerDepth)
		return nil
	case KindOpaque:
		buf.WriteByte('{')
		writeKey(buf, markerOpaque)
		writeString(buf, v.Text)
		buf.WriteByte('}')
		return nil
	}
	return fmt.Errorf("serialize: unknown kind %d", v.Kind)
}

func encodeScalar(buf *bytes.Buffer, s any) error {
	switch x := s.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(x))
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("serialize: non-finite float %v", x)
		}
		buf.WriteString(formatFloat(x))
	case string:
		writeString(buf, x)
	default:
		return fmt.Errorf("serialize: unsupported scalar %T", s)
	}
	return nil
}

// formatFloat keeps a fractional part on integral floats so they decode as
// floats again.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func writeKey(buf *bytes.Buffer, k string) {
	writeString(buf, k)
	buf.WriteByte(':')
}

// writeString quotes s without HTML escaping, so reprs such as
// <built-in function len> read as written.
func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode terminates each value with a newline.
	buf.Truncate(buf.Len() - 1)
}

// UnmarshalJSON reads the wire form back, preserving field order.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			return decodeArray(dec)
		case '{':
			return decodeObject(dec)
		}
		return Value{}, fmt.Errorf("serialize: unexpected delimiter %q", t)
	case json.Number:
		return decodeNumber(t)
	case nil, bool, string:
		return Scalar(t), nil
	}
	return Value{}, fmt.Errorf("serialize: unexpected token %v", tok)
}

func decodeNumber(n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Scalar(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("serialize: bad number %q: %w", s, err)
	}
	return Scalar(f), nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	items := []Value{}
	for dec.More() {
		item, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Sequence(items), nil
}

func decodeObject(dec *json.Decoder) (Value, error) {
	var fields []Field
	typ, isObject := "", false
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("serialize: object key %v is not a string", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		if key == markerType && val.Kind == KindScalar {
			if s, ok := val.Scalar.(string); ok {
				typ, isObject = s, true
				continue
			}
		}
		fields = append(fields, Field{Name: key, Value: val})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return Value{}, err
	}
	if isObject {
		return Object(typ, fields), nil
	}
	if len(fields) == 1 {
		if v, ok := marker(fields[0]); ok {
			return v, nil
		}
	}
	if fields == nil {
		fields = []Field{}
	}
	return Mapping(fields), nil
}

func marker(f Field) (Value, bool) {
	if f.Value.Kind != KindScalar {
		return Value{}, false
	}
	switch f.Name {
	case markerCircular:
		switch id := f.Value.Scalar.(type) {
		case int64:
			return CircularRef(uint64(id)), true
		case float64:
			return CircularRef(uint64(id)), true
		}
	case markerDepth:
		if b, ok := f.Value.Scalar.(bool); ok && b {
			return DepthLimited(), true
		}
	case markerOpaque:
		if s, ok := f.Value.Scalar.(string); ok {
			return Opaque(s), true
		}
	}
	return Value{}, false
}
