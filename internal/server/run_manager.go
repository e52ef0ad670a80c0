package server

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrBusy is returned when every run slot is taken.
var ErrBusy = errors.New("too many concurrent runs")

// ActiveRun tracks one in-flight sandbox execution.
type ActiveRun struct {
	ID     string
	Cancel context.CancelFunc
}

// RunManager bounds how many sandbox runs the server has in flight and
// cancels them on shutdown.
type RunManager struct {
	mu    sync.Mutex
	runs  map[string]*ActiveRun
	slots chan struct{}
}

// NewRunManager creates a RunManager admitting at most max concurrent runs.
// max <= 0 means no limit.
func NewRunManager(max int) *RunManager {
	rm := &RunManager{runs: make(map[string]*ActiveRun)}
	if max > 0 {
		rm.slots = make(chan struct{}, max)
	}
	return rm
}

// Start claims a run slot and returns a context that is cancelled when the
// run is removed. The caller must call Remove with the returned run's ID.
func (rm *RunManager) Start(ctx context.Context) (*ActiveRun, context.Context, error) {
	if rm.slots != nil {
		select {
		case rm.slots <- struct{}{}:
		default:
			return nil, nil, ErrBusy
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	ar := &ActiveRun{ID: uuid.New().String(), Cancel: cancel}

	rm.mu.Lock()
	rm.runs[ar.ID] = ar
	rm.mu.Unlock()
	return ar, ctx, nil
}

// Get returns an active run if it exists.
func (rm *RunManager) Get(id string) (*ActiveRun, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	ar, ok := rm.runs[id]
	return ar, ok
}

// Remove cancels a run and releases its slot.
func (rm *RunManager) Remove(id string) {
	rm.mu.Lock()
	ar, ok := rm.runs[id]
	delete(rm.runs, id)
	rm.mu.Unlock()
	if !ok {
		return
	}
	ar.Cancel()
	if rm.slots != nil {
		<-rm.slots
	}
}

// Len reports how many runs are in flight.
func (rm *RunManager) Len() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.runs)
}

// CloseAll cancels every active run.
func (rm *RunManager) CloseAll() {
	rm.mu.Lock()
	ids := make([]string, 0, len(rm.runs))
	for id := range rm.runs {
		ids = append(ids, id)
	}
	rm.mu.Unlock()
	for _, id := range ids {
		rm.Remove(id)
	}
}
