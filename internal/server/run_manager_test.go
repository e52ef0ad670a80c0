package server

import (
	"context"
	"errors"
	"testing"
)

func TestRunManager_StartAndRemove(t *testing.T) {
	rm := NewRunManager(2)
	defer rm.CloseAll()

	ar, ctx, err := rm.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rm.Get(ar.ID); !ok {
		t.Fatal("expected run to be tracked")
	}

	rm.Remove(ar.ID)
	if _, ok := rm.Get(ar.ID); ok {
		t.Error("expected run to be removed")
	}
	if ctx.Err() == nil {
		t.Error("expected the run context to be cancelled")
	}

	// Removing twice must not release a second slot.
	rm.Remove(ar.ID)
	if rm.Len() != 0 {
		t.Errorf("Len = %d, want 0", rm.Len())
	}
}

func TestRunManager_Busy(t *testing.T) {
	rm := NewRunManager(1)
	defer rm.CloseAll()

	first, _, err := rm.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := rm.Start(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Start = %v, want ErrBusy", err)
	}

	rm.Remove(first.ID)
	if _, _, err := rm.Start(context.Background()); err != nil {
		t.Errorf("Start after Remove: %v", err)
	}
}

func TestRunManager_CloseAll(t *testing.T) {
	rm := NewRunManager(0)

	var ctxs []context.Context
	for i := 0; i < 3; i++ {
		_, ctx, err := rm.Start(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		ctxs = append(ctxs, ctx)
	}

	rm.CloseAll()
	if rm.Len() != 0 {
		t.Errorf("Len = %d after CloseAll", rm.Len())
	}
	for i, ctx := range ctxs {
		if ctx.Err() == nil {
			t.Errorf("run %d was not cancelled", i)
		}
	}
}
