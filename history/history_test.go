package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(t *testing.T, s *Store, e Entry) int64 {
	t.Helper()
	id, err := s.Record(context.Background(), e)
	if err != nil {
		t.Fatalf("Record(%+v): %v", e, err)
	}
	return id
}

func TestRecordAndSession(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	a, b := NewSessionID(), NewSessionID()
	if a == b {
		t.Fatal("NewSessionID returned a duplicate")
	}

	record(t, s, Entry{Session: a, Source: "x := 1", Result: "1", CreatedAt: when})
	record(t, s, Entry{Session: b, Source: "y", Error: "undeclared identifier \"y\"", CreatedAt: when})
	record(t, s, Entry{Session: a, Source: "x + 1", Result: "2", CreatedAt: when})

	got, err := s.Session(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{
		{Session: a, Source: "x := 1", Result: "1"},
		{Session: a, Source: "x + 1", Result: "2"},
	}
	opts := cmpopts.IgnoreFields(Entry{}, "ID", "CreatedAt")
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("Session mismatch (-want +got):\n%s", diff)
	}
	if !got[0].CreatedAt.Equal(when) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, when)
	}
	if got[0].ID >= got[1].ID {
		t.Errorf("IDs not increasing: %d, %d", got[0].ID, got[1].ID)
	}

	failed, err := s.Session(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || !failed[0].Failed() {
		t.Errorf("session %s = %+v, want one failed entry", b, failed)
	}

	none, err := s.Session(ctx, "missing")
	if err != nil || len(none) != 0 {
		t.Errorf("Session(missing) = %v, %v; want empty", none, err)
	}
}

func TestRecent(t *testing.T) {
	s := openTemp(t)
	for _, src := range []string{"a", "b", "c", "d"} {
		record(t, s, Entry{Session: "s", Source: src})
	}

	got, err := s.Recent(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	var sources []string
	for _, e := range got {
		sources = append(sources, e.Source)
		if e.CreatedAt.IsZero() {
			t.Errorf("entry %d has no timestamp", e.ID)
		}
	}
	if diff := cmp.Diff([]string{"c", "d"}, sources); diff != "" {
		t.Errorf("Recent(2) mismatch (-want +got):\n%s", diff)
	}
}

func TestSources(t *testing.T) {
	s := openTemp(t)
	for _, src := range []string{"a", "b", "b", "a"} {
		record(t, s, Entry{Session: "s", Source: src})
	}
	got, err := s.Sources(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b", "a"}, got); diff != "" {
		t.Errorf("Sources mismatch (-want +got):\n%s", diff)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	record(t, s, Entry{Session: "s", Source: "kept"})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Recent(context.Background(), 5)
	if err != nil || len(got) != 1 || got[0].Source != "kept" {
		t.Errorf("Recent after reopen = %+v, %v", got, err)
	}
}

func TestInMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	record(t, s, Entry{Session: "s", Source: "1"})
	got, err := s.Recent(context.Background(), 1)
	if err != nil || len(got) != 1 {
		t.Errorf("Recent = %+v, %v", got, err)
	}
}

func TestClosed(t *testing.T) {
	s := openTemp(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := s.Record(context.Background(), Entry{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Record after Close = %v, want ErrClosed", err)
	}
	if _, err := s.Recent(context.Background(), 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Recent after Close = %v, want ErrClosed", err)
	}
}
