// Package serialize converts runtime values into bounded, cycle-safe
// snapshots that can be written as JSON.
//
// Values describe themselves through small capability interfaces rather
// than concrete types, so the package works for any object model. Values
// with none of the capabilities fall back to reflection and, failing that,
// to an opaque textual form. Serialize never fails.
package serialize

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strings"
)

// DefaultDepth is the nesting depth below which subtrees are replaced by
// DepthLimited.
const DefaultDepth = 10

// Seq is an ordered sequence such as a list, tuple or deque.
type Seq interface {
	Elements() []any
}

// Set is an unordered collection. Members are sorted when they are mutually
// comparable so repeated runs produce identical output.
type Set interface {
	Members() []any
}

// Map is an associative container whose keys are already rendered as text.
type Map interface {
	RangeEntries(fn func(key string, v any) bool)
}

// Composite is an object with a stable set of named fields.
type Composite interface {
	TypeName() string
	RangeFields(fn func(name string, v any) bool)
}

// Identified values report a stable identity used for cycle detection and
// as the id of a CircularRef.
type Identified interface {
	ObjectID() uint64
}

// Representer supplies the text of an Opaque fallback.
type Representer interface {
	Repr() string
}

// Serialize snapshots v. Each call starts a fresh identity registry, so
// sharing between two separately serialized roots is not reported as a
// cycle, while any second visit to an object inside one root is.
func Serialize(v any, remainingDepth int) Value {
	s := &state{
		ids:  map[uint64]bool{},
		ptrs: map[uintptr]bool{},
	}
	return s.value(v, remainingDepth)
}

type state struct {
	ids  map[uint64]bool
	ptrs map[uintptr]bool
}

func (s *state) value(v any, depth int) (out Value) {
	defer func() {
		if r := recover(); r != nil {
			out = Opaque(fmt.Sprintf("<unserializable: %v>", r))
		}
	}()

	if sc, ok := scalar(v); ok {
		return sc
	}
	if depth <= 0 {
		return DepthLimited()
	}
	if obj, ok := v.(Identified); ok {
		id := obj.ObjectID()
		if s.ids[id] {
			return CircularRef(id)
		}
		s.ids[id] = true
	}

	switch x := v.(type) {
	case Seq:
		return s.sequence(x.Elements(), depth)
	case Set:
		return s.sequence(sortMembers(x.Members()), depth)
	case Map:
		return s.mapping(x, depth)
	case Composite:
		return s.object(v, x, depth)
	case Representer:
		return Opaque(x.Repr())
	case error:
		return Opaque(x.Error())
	case fmt.Stringer:
		return Opaque(x.String())
	}
	return s.reflected(reflect.ValueOf(v), depth)
}

func (s *state) sequence(items []any, depth int) Value {
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = s.value(item, depth-1)
	}
	return Sequence(out)
}

func (s *state) mapping(m Map, depth int) Value {
	fields := []Field{}
	index := map[string]int{}
	m.RangeEntries(func(key string, v any) bool {
		val := s.value(v, depth-1)
		if i, ok := index[key]; ok {
			fields[i].Value = val
			return true
		}
		index[key] = len(fields)
		fields = append(fields, Field{Name: key, Value: val})
		return true
	})
	return Mapping(fields)
}

// object snapshots the public fields of a composite. One with no public
// fields is shown by its textual form instead.
func (s *state) object(v any, c Composite, depth int) Value {
	var fields []Field
	c.RangeFields(func(name string, fv any) bool {
		if strings.HasPrefix(name, "__") {
			return true
		}
		fields = append(fields, Field{Name: name, Value: s.value(fv, depth-1)})
		return true
	})
	if len(fields) == 0 {
		if r, ok := v.(Representer); ok {
			return Opaque(r.Repr())
		}
		return Opaque("<" + c.TypeName() + " object>")
	}
	return Object(c.TypeName(), fields)
}

// scalar passes primitives through, normalizing numbers to int64 or float64.
func scalar(v any) (Value, bool) {
	switch x := v.(type) {
	case nil:
		return Scalar(nil), true
	case bool, string, int64:
		return Scalar(x), true
	case int:
		return Scalar(int64(x)), true
	case int8:
		return Scalar(int64(x)), true
	case int16:
		return Scalar(int64(x)), true
	case int32:
		return Scalar(int64(x)), true
	case uint8:
		return Scalar(int64(x)), true
	case uint16:
		return Scalar(int64(x)), true
	case uint32:
		return Scalar(int64(x)), true
	case uint:
		return unsigned(uint64(x)), true
	case uint64:
		return unsigned(x), true
	case float32:
		return float(float64(x)), true
	case float64:
		return float(x), true
	case *big.Int:
		// Integers beyond 64 bits keep every digit as Opaque text.
		if x.IsInt64() {
			return Scalar(x.Int64()), true
		}
		return Opaque(x.String()), true
	}
	return Value{}, false
}

func unsigned(u uint64) Value {
	if u > math.MaxInt64 {
		return Opaque(fmt.Sprint(u))
	}
	return Scalar(int64(u))
}

func float(f float64) Value {
	switch {
	case math.IsNaN(f):
		return Opaque("nan")
	case math.IsInf(f, 1):
		return Opaque("inf")
	case math.IsInf(f, -1):
		return Opaque("-inf")
	}
	return Scalar(f)
}

// reflected serves plain Go values: pointers, slices, arrays, maps and structs.
func (s *state) reflected(rv reflect.Value, depth int) Value {
	switch rv.Kind() {
	case reflect.Invalid:
		return Scalar(nil)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Scalar(nil)
		}
		if rv.Kind() == reflect.Pointer {
			if ref, seen := s.visit(rv.Pointer()); seen {
				return ref
			}
		}
		return s.value(rv.Elem().Interface(), depth)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			if rv.IsNil() {
				return Scalar(nil)
			}
			if rv.Len() > 0 {
				if ref, seen := s.visit(rv.Pointer()); seen {
					return ref
				}
			}
		}
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = s.value(rv.Index(i).Interface(), depth-1)
		}
		return Sequence(items)
	case reflect.Map:
		if rv.IsNil() {
			return Scalar(nil)
		}
		if ref, seen := s.visit(rv.Pointer()); seen {
			return ref
		}
		keys := rv.MapKeys()
		fields := make([]Field, len(keys))
		for i, k := range keys {
			fields[i] = Field{Name: fmt.Sprint(k.Interface()), Value: s.value(rv.MapIndex(k).Interface(), depth-1)}
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		return Mapping(fields)
	case reflect.Struct:
		t := rv.Type()
		var fields []Field
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			fields = append(fields, Field{Name: t.Field(i).Name, Value: s.value(rv.Field(i).Interface(), depth-1)})
		}
		return Object(t.Name(), fields)
	case reflect.Bool:
		return Scalar(rv.Bool())
	case reflect.String:
		return Scalar(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Scalar(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return unsigned(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return float(rv.Float())
	}
	return Opaque(fmt.Sprintf("<%s>", rv.Type()))
}

func (s *state) visit(p uintptr) (Value, bool) {
	if s.ptrs[p] {
		return CircularRef(uint64(p)), true
	}
	s.ptrs[p] = true
	return Value{}, false
}

// Degradations counts the Opaque and DepthLimited markers inside v.
func Degradations(v Value) int {
	switch v.Kind {
	case KindOpaque, KindDepthLimited:
		return 1
	case KindSequence:
		n := 0
		for _, item := range v.Items {
			n += Degradations(item)
		}
		return n
	case KindMapping, KindObject:
		n := 0
		for _, f := range v.Fields {
			n += Degradations(f.Value)
		}
		return n
	}
	return 0
}
