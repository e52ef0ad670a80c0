package serialize

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/michaelbrown/decipher/internal/pylite"
)

// globals runs src and returns its module bindings by name.
func globals(t *testing.T, src string) map[string]any {
	t.Helper()
	in := pylite.New(pylite.Options{})
	if err := in.Run(context.Background(), src); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := map[string]any{}
	for _, b := range in.Globals() {
		out[b.Name] = b.Value
	}
	return out
}

func encode(t *testing.T, v Value) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return string(b)
}

func TestSerializeSelfReference(t *testing.T) {
	g := globals(t, "v = [1]\nv.append(v)\n")
	v := g["v"]
	id := v.(Identified).ObjectID()

	got := Serialize(v, DefaultDepth)
	if got.Kind != KindSequence || len(got.Items) != 2 {
		t.Fatalf("Serialize = %+v, want a two-element sequence", got)
	}
	if !got.Items[1].Equal(CircularRef(id)) {
		t.Errorf("self slot = %+v, want CircularRef(%d)", got.Items[1], id)
	}
}

func TestSerializeSharingAcrossRoots(t *testing.T) {
	g := globals(t, "a = [1, 2]\nb = {'x': a}\n")
	first := Serialize(g["a"], DefaultDepth)
	second := Serialize(g["b"], DefaultDepth)

	if first.Kind != KindSequence {
		t.Fatalf("a = %+v, want sequence", first)
	}
	x, ok := second.Field("x")
	if !ok || x.Kind != KindSequence {
		t.Errorf("b['x'] = %+v, want the shared list, not a circular marker", x)
	}
}

func TestSerializeDepthLimit(t *testing.T) {
	g := globals(t, "x = [[[[1]]]]\n")
	got := encode(t, Serialize(g["x"], 3))
	want := `[[[{"__depth_limited__":true}]]]`
	if got != want {
		t.Errorf("Serialize = %s, want %s", got, want)
	}
}

func TestSerializePythonValues(t *testing.T) {
	g := globals(t, `
class Node:
    def __init__(self, val):
        self.val = val
        self.next = None

class Empty:
    pass

n = Node(3)
n.next = Node(4)
e = Empty()
d = {1: 'one', 'k': [1.0, True, None]}
s = {3, 1, 2}
mixed = {'b', 1}
r = range(3)
f = len
big = 10 ** 20
neg = -2 ** 64 + 2 ** 64 - 5
tag = '<b>&'
`)
	tests := []struct {
		name string
		want string
	}{
		{"n", `{"__type__":"Node","val":3,"next":{"__type__":"Node","val":4,"next":null}}`},
		{"d", `{"1":"one","k":[1.0,true,null]}`},
		{"s", `[1,2,3]`},
		{"mixed", `["b",1]`},
		{"r", `{"__opaque__":"range(0, 3)"}`},
		{"f", `{"__opaque__":"<built-in function len>"}`},
		{"big", `{"__opaque__":"100000000000000000000"}`},
		{"neg", `-5`},
		{"tag", `"<b>&"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encode(t, Serialize(g[tt.name], DefaultDepth))
			if got != tt.want {
				t.Errorf("Serialize(%s) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}

	if got := Serialize(g["e"], DefaultDepth); got.Kind != KindOpaque {
		t.Errorf("field-less instance = %+v, want opaque", got)
	}
}

type panicky struct{}

func (panicky) TypeName() string { return "Panicky" }

func (panicky) RangeFields(fn func(string, any) bool) {
	fn("ok", 1)
	fn("bad", exploding{})
}

type exploding struct{}

func (exploding) Elements() []any { panic("boom") }

func TestSerializeFieldFailureIsolated(t *testing.T) {
	got := Serialize(panicky{}, DefaultDepth)
	if got.Kind != KindObject {
		t.Fatalf("Serialize = %+v, want object", got)
	}
	if ok, _ := got.Field("ok"); !ok.Equal(Scalar(int64(1))) {
		t.Errorf("ok = %+v, want 1", ok)
	}
	if bad, _ := got.Field("bad"); bad.Kind != KindOpaque {
		t.Errorf("bad = %+v, want opaque", bad)
	}
}

type goNode struct {
	Name string
	Next *goNode
	skip int
}

func TestSerializeReflection(t *testing.T) {
	loop := &goNode{Name: "a"}
	loop.Next = loop

	got := Serialize(loop, DefaultDepth)
	if got.Kind != KindObject || got.Type != "goNode" {
		t.Fatalf("Serialize = %+v, want goNode object", got)
	}
	if next, _ := got.Field("Next"); next.Kind != KindCircular {
		t.Errorf("Next = %+v, want circular", next)
	}
	if _, ok := got.Field("skip"); ok {
		t.Error("unexported field was serialized")
	}

	m := Serialize(map[string]int{"b": 2, "a": 1}, DefaultDepth)
	if enc := encode(t, m); enc != `{"a":1,"b":2}` {
		t.Errorf("map = %s, want sorted keys", enc)
	}
}

func TestSerializeNonFiniteFloats(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := Serialize(f, DefaultDepth); got.Kind != KindOpaque {
			t.Errorf("Serialize(%v) = %+v, want opaque", f, got)
		}
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	v := Mapping([]Field{
		{Name: "z", Value: Scalar(int64(1))},
		{Name: "a", Value: Sequence([]Value{Scalar(2.0), Scalar("s"), Scalar(nil)})},
		{Name: "node", Value: Object("Node", []Field{{Name: "next", Value: CircularRef(1030)}})},
		{Name: "deep", Value: DepthLimited()},
		{Name: "fn", Value: Opaque("<function f>")},
	})
	data := encode(t, v)

	var back Value
	if err := json.Unmarshal([]byte(data), &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.Equal(v) {
		t.Errorf("round trip = %s, want %s", encode(t, back), data)
	}
}

func TestDegradations(t *testing.T) {
	v := Sequence([]Value{Opaque("x"), Mapping([]Field{{Name: "d", Value: DepthLimited()}}), Scalar(int64(1))})
	if got := Degradations(v); got != 2 {
		t.Errorf("Degradations = %d, want 2", got)
	}
}
