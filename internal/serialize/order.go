package serialize

import (
	"sort"
	"strings"
)

// sortMembers orders set members when every pair is comparable: numbers
// with numbers, strings with strings, sequences element-wise. Otherwise the
// members keep their iteration order.
func sortMembers(members []any) []any {
	out := append([]any(nil), members...)
	ok := true
	sort.SliceStable(out, func(i, j int) bool {
		c, comparable := compare(out[i], out[j])
		if !comparable {
			ok = false
		}
		return c < 0
	})
	if !ok {
		return members
	}
	return out
}

func compare(a, b any) (int, bool) {
	if x, ok := number(a); ok {
		y, ok := number(b)
		if !ok {
			return 0, false
		}
		return x.compare(y), true
	}
	if x, ok := a.(string); ok {
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	}
	xs, ok := a.(Seq)
	if !ok {
		return 0, false
	}
	ys, ok := b.(Seq)
	if !ok {
		return 0, false
	}
	x, y := xs.Elements(), ys.Elements()
	for i := 0; i < len(x) && i < len(y); i++ {
		c, ok := compare(x[i], y[i])
		if !ok {
			return 0, false
		}
		if c != 0 {
			return c, true
		}
	}
	switch {
	case len(x) < len(y):
		return -1, true
	case len(x) > len(y):
		return 1, true
	}
	return 0, true
}

// num holds an int or a float without losing int64 precision.
type num struct {
	i       int64
	f       float64
	isFloat bool
}

func number(v any) (num, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return num{i: 1}, true
		}
		return num{}, true
	case int:
		return num{i: int64(x)}, true
	case int64:
		return num{i: x}, true
	case float64:
		return num{f: x, isFloat: true}, true
	}
	return num{}, false
}

func (a num) compare(b num) int {
	if !a.isFloat && !b.isFloat {
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		}
		return 0
	}
	x, y := a.float(), b.float()
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func (a num) float() float64 {
	if a.isFloat {
		return a.f
	}
	return float64(a.i)
}
