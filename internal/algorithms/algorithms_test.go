package algorithms

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"
)

var sample = Graph{
	"1": {2, 3},
	"2": {4},
	"3": {4},
	"4": {},
}

func TestBFS(t *testing.T) {
	got := BFS(sample, 1)
	if want := []int{1, 2, 3, 4}; !slices.Equal(got.FinalOrder, want) {
		t.Errorf("FinalOrder = %v, want %v", got.FinalOrder, want)
	}
	if len(got.Steps) != 4 {
		t.Fatalf("got %d steps, want 4", len(got.Steps))
	}
	first := got.Steps[0]
	if first.Current != 1 || !slices.Equal(first.Frontier, []int{}) || !slices.Equal(first.Visited, []int{1}) {
		t.Errorf("first step = %+v", first)
	}
	// 4 is reachable from both 2 and 3 but queued once.
	if q := got.Steps[1].Frontier; !slices.Equal(q, []int{3}) {
		t.Errorf("queue after visiting 2 = %v, want [3]", q)
	}
}

func TestDFS(t *testing.T) {
	got := DFS(sample, 1)
	if want := []int{1, 2, 4, 3}; !slices.Equal(got.FinalOrder, want) {
		t.Errorf("FinalOrder = %v, want %v", got.FinalOrder, want)
	}
	if s := got.Steps[0].Frontier; !slices.Equal(s, []int{}) {
		t.Errorf("stack at first step = %v, want empty", s)
	}
}

func TestTraversalStepJSON(t *testing.T) {
	tests := []struct {
		name    string
		walk    func(Graph, int) Traversal
		want    string
		without string
	}{
		{"bfs last step", BFS, `{"current":4,"queue":[],"visited":[1,2,3,4],"order_so_far":[1,2,3,4]}`, `"stack"`},
		{"dfs last step", DFS, `{"current":3,"stack":[],"visited":[1,2,3,4],"order_so_far":[1,2,4,3]}`, `"queue"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := tt.walk(sample, 1).Steps
			b, err := json.Marshal(steps[len(steps)-1])
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("got %s, want %s", b, tt.want)
			}
			if strings.Contains(string(b), tt.without) {
				t.Errorf("%s carries %s", b, tt.without)
			}
		})
	}
}

func TestWaveArray(t *testing.T) {
	in := []int{1, 2, 3, 4, 5}
	got := WaveArray(in)
	if want := []int{2, 1, 4, 3, 5}; !slices.Equal(got.FinalArray, want) {
		t.Errorf("FinalArray = %v, want %v", got.FinalArray, want)
	}
	if len(got.Steps) != 2 || got.Steps[1].Step != 2 {
		t.Errorf("steps = %+v", got.Steps)
	}
	if !slices.Equal(in, []int{1, 2, 3, 4, 5}) {
		t.Errorf("input was modified: %v", in)
	}
}

func TestGraphValidate(t *testing.T) {
	if err := (Graph{"a": {1}}).Validate(); err == nil {
		t.Error("Validate accepted a non-numeric key")
	}
	if err := sample.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
