package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/michaelbrown/decipher/internal/serialize"
	"github.com/michaelbrown/decipher/internal/storage"
	"github.com/michaelbrown/decipher/internal/trace"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func save(t *testing.T, s *SQLiteStore, e *storage.Entry) {
	t.Helper()
	if err := s.SaveEntry(context.Background(), e, nil); err != nil {
		t.Fatalf("SaveEntry: %v", err)
	}
}

func TestSaveAndGetEntry(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	e := &storage.Entry{
		ID:        "abc12345-0000-0000-0000-000000000000",
		UserID:    "u1",
		Code:      "x = input()\n",
		Inputs:    []string{"4"},
		Outcome:   "completed",
		StepCount: 2,
	}
	save(t, s, e)

	got, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Code != e.Code {
		t.Errorf("code = %q, want %q", got.Code, e.Code)
	}
	if got.Language != "python" {
		t.Errorf("language = %q, want python", got.Language)
	}
	if len(got.Inputs) != 1 || got.Inputs[0] != "4" {
		t.Errorf("inputs = %v, want [4]", got.Inputs)
	}
	if got.Outcome != "completed" || got.StepCount != 2 {
		t.Errorf("outcome = %q steps = %d", got.Outcome, got.StepCount)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at should not be zero")
	}
}

func TestGetEntryByPrefix(t *testing.T) {
	s := testStore(t)
	save(t, s, &storage.Entry{ID: "abc12345-0000-0000-0000-000000000000", UserID: "u1", Code: "x = 1"})

	got, err := s.GetEntry(context.Background(), "abc12345")
	if err != nil {
		t.Fatalf("GetEntry by prefix: %v", err)
	}
	if got.ID != "abc12345-0000-0000-0000-000000000000" {
		t.Errorf("got ID %q", got.ID)
	}
}

func TestGetEntryAmbiguousPrefix(t *testing.T) {
	s := testStore(t)
	for _, id := range []string{
		"abc00000-0000-0000-0000-000000000000",
		"abc11111-0000-0000-0000-000000000000",
	} {
		save(t, s, &storage.Entry{ID: id, UserID: "u1", Code: "x = 1"})
	}

	_, err := s.GetEntry(context.Background(), "abc")
	if err == nil {
		t.Fatal("expected error for ambiguous prefix")
	}
	if errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ambiguous prefix reported as not found: %v", err)
	}
}

func TestGetEntryNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetEntry(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListEntries(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"aaa", "bbb", "ccc"} {
		save(t, s, &storage.Entry{ID: id, UserID: "u1", Code: id, CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}
	save(t, s, &storage.Entry{ID: "other", UserID: "u2", Code: "y"})

	entries, err := s.ListEntries(ctx, "u1", storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].ID != "ccc" || entries[2].ID != "aaa" {
		t.Errorf("order = %s,%s,%s, want newest first", entries[0].ID, entries[1].ID, entries[2].ID)
	}

	none, err := s.ListEntries(ctx, "nobody", storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("unknown user = %v, want empty slice", none)
	}
}

func TestListEntriesLimit(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 5; i++ {
		save(t, s, &storage.Entry{ID: string(rune('a' + i)), UserID: "u1", Code: "x"})
	}

	entries, err := s.ListEntries(context.Background(), "u1", storage.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}
}

func TestSaveAndLoadTrace(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	tr := trace.New()
	tr.Append(trace.Step{
		Line:  trace.LineAt(1),
		Event: trace.EventLine,
		Variables: map[string]serialize.Value{
			"xs": serialize.Sequence([]serialize.Value{serialize.Scalar(int64(1)), serialize.Scalar(2.5)}),
		},
	})
	tr.Fail(&trace.ExecError{Kind: trace.KindUserProgram, Type: "ValueError", Message: "bad", Line: 1})

	e := &storage.Entry{ID: "t1", UserID: "u1", Code: "xs = [1, 2.5]", Outcome: "errored", StepCount: 1}
	if err := s.SaveEntry(ctx, e, tr); err != nil {
		t.Fatalf("SaveEntry: %v", err)
	}

	loaded, err := s.LoadTrace(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadTrace: %v", err)
	}
	if loaded == nil || len(loaded.Steps) != 1 {
		t.Fatalf("loaded = %+v, want one step", loaded)
	}
	if !loaded.Steps[0].Variables["xs"].Equal(tr.Steps[0].Variables["xs"]) {
		t.Errorf("xs = %+v, want %+v", loaded.Steps[0].Variables["xs"], tr.Steps[0].Variables["xs"])
	}
	if loaded.Error == nil || *loaded.Error != *tr.Error {
		t.Errorf("error = %v, want %q", loaded.Error, *tr.Error)
	}

	missing, err := s.LoadTrace(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("LoadTrace: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for entry without trace, got %+v", missing)
	}
}

func TestDeleteEntry(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveEntry(ctx, &storage.Entry{ID: "del1", UserID: "u1", Code: "x"}, trace.New()); err != nil {
		t.Fatalf("SaveEntry: %v", err)
	}
	if err := s.DeleteEntry(ctx, "del1"); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}

	if _, err := s.GetEntry(ctx, "del1"); err == nil {
		t.Fatal("expected error after delete")
	}
	tr, err := s.LoadTrace(ctx, "del1")
	if err != nil {
		t.Fatalf("LoadTrace after delete: %v", err)
	}
	if tr != nil {
		t.Error("trace survived its entry")
	}
}

func TestClearUser(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	save(t, s, &storage.Entry{ID: "a1", UserID: "u1", Code: "x"})
	save(t, s, &storage.Entry{ID: "a2", UserID: "u1", Code: "x"})
	save(t, s, &storage.Entry{ID: "b1", UserID: "u2", Code: "x"})

	n, err := s.ClearUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ClearUser: %v", err)
	}
	if n != 2 {
		t.Errorf("cleared %d, want 2", n)
	}
	if _, err := s.GetEntry(ctx, "b1"); err != nil {
		t.Errorf("other user's entry was removed: %v", err)
	}
}

func TestOutcomeConstraint(t *testing.T) {
	tests := []struct {
		outcome string
		ok      bool
	}{
		{"completed", true},
		{"timed_out", true},
		{"canceled", true},
		{"exploded", false},
	}
	s := testStore(t)
	for i, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			e := &storage.Entry{ID: fmt.Sprintf("x%d", i), UserID: "u1", Code: "x", Outcome: tt.outcome}
			err := s.SaveEntry(context.Background(), e, nil)
			if (err == nil) != tt.ok {
				t.Errorf("SaveEntry(%q) = %v, want ok=%v", tt.outcome, err, tt.ok)
			}
		})
	}
}
