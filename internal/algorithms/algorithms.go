// Package algorithms holds fixed demonstration algorithms that report their
// own state after every step. They run trusted Go code and need no tracer.
package algorithms

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Graph is an adjacency list keyed by the node number in decimal.
type Graph map[string][]int

func (g Graph) neighbors(node int) []int {
	return g[strconv.Itoa(node)]
}

// TraversalStep is the state after one node has been visited. Frontier is
// the queue for BFS and the stack for DFS, and is encoded under that name
// even when empty.
type TraversalStep struct {
	Current    int
	Frontier   []int
	Visited    []int
	OrderSoFar []int
	depthFirst bool
}

func (s TraversalStep) MarshalJSON() ([]byte, error) {
	frontier := s.Frontier
	if frontier == nil {
		frontier = []int{}
	}
	if s.depthFirst {
		return json.Marshal(struct {
			Current    int   `json:"current"`
			Stack      []int `json:"stack"`
			Visited    []int `json:"visited"`
			OrderSoFar []int `json:"order_so_far"`
		}{s.Current, frontier, s.Visited, s.OrderSoFar})
	}
	return json.Marshal(struct {
		Current    int   `json:"current"`
		Queue      []int `json:"queue"`
		Visited    []int `json:"visited"`
		OrderSoFar []int `json:"order_so_far"`
	}{s.Current, frontier, s.Visited, s.OrderSoFar})
}

// Traversal is the full record of a graph walk.
type Traversal struct {
	Steps      []TraversalStep `json:"steps"`
	FinalOrder []int           `json:"final_order"`
}

// BFS walks g breadth-first from start. A neighbor already visited or
// already waiting in the queue is not queued again.
func BFS(g Graph, start int) Traversal {
	visited := map[int]bool{}
	queue := []int{start}
	out := Traversal{Steps: []TraversalStep{}, FinalOrder: []int{}}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if visited[node] {
			continue
		}
		visited[node] = true
		out.FinalOrder = append(out.FinalOrder, node)
		out.Steps = append(out.Steps, TraversalStep{
			Current:    node,
			Frontier:   clone(queue),
			Visited:    sortedKeys(visited),
			OrderSoFar: clone(out.FinalOrder),
		})
		for _, n := range g.neighbors(node) {
			if !visited[n] && !slices.Contains(queue, n) {
				queue = append(queue, n)
			}
		}
	}
	return out
}

// DFS walks g depth-first from start. Neighbors are pushed in reverse so
// they are visited in listed order.
func DFS(g Graph, start int) Traversal {
	visited := map[int]bool{}
	stack := []int{start}
	out := Traversal{Steps: []TraversalStep{}, FinalOrder: []int{}}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[node] {
			continue
		}
		visited[node] = true
		out.FinalOrder = append(out.FinalOrder, node)
		out.Steps = append(out.Steps, TraversalStep{
			Current:    node,
			Frontier:   clone(stack),
			Visited:    sortedKeys(visited),
			OrderSoFar: clone(out.FinalOrder),
			depthFirst: true,
		})
		next := g.neighbors(node)
		for i := len(next) - 1; i >= 0; i-- {
			if !visited[next[i]] {
				stack = append(stack, next[i])
			}
		}
	}
	return out
}

// WaveStep is the array after one pair swap.
type WaveStep struct {
	Step  int   `json:"step"`
	Array []int `json:"array"`
}

// Wave is the full record of a wave-array pass.
type Wave struct {
	Steps      []WaveStep `json:"steps"`
	FinalArray []int      `json:"final_array"`
}

// WaveArray swaps each adjacent pair (0,1), (2,3), ... of a copy of nums.
func WaveArray(nums []int) Wave {
	arr := clone(nums)
	out := Wave{Steps: []WaveStep{}}
	for i := 0; i+1 < len(arr); i += 2 {
		arr[i], arr[i+1] = arr[i+1], arr[i]
		out.Steps = append(out.Steps, WaveStep{Step: i/2 + 1, Array: clone(arr)})
	}
	out.FinalArray = arr
	return out
}

// Validate reports whether g's keys are all node numbers.
func (g Graph) Validate() error {
	for k := range g {
		if _, err := strconv.Atoi(k); err != nil {
			return fmt.Errorf("graph key %q is not a node number", k)
		}
	}
	return nil
}

func clone(s []int) []int {
	return append([]int{}, s...)
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
