package store_test

import (
	"testing"

	_ "modernc.org/sqlite"

	"github.com/mikroscope/sidecar/internal/dbopen"
	"github.com/mikroscope/sidecar/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	return &store.Store{DB: db}
}

func TestGetStatsEmpty(t *testing.T) {
	s := newTestStore(t)

	st, err := s.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if st.EntryCount != 0 || st.FieldCount != 0 {
		t.Fatalf("expected empty store, got %+v", st)
	}
	if st.PageSize == 0 {
		t.Fatal("expected nonzero page size")
	}
}

func TestReset(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		id, _, err := s.UpsertEntry(store.EntryInput{
			Timestamp: "2026-01-01T00:00:00Z", Level: "INFO", Event: "e",
			DataJSON: "{}", SourceFile: "a.ndjson", LineNumber: i,
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := s.UpsertField(id, "k", "v"); err != nil {
			t.Fatal(err)
		}
	}

	entriesDeleted, fieldsDeleted, err := s.Reset()
	if err != nil {
		t.Fatal(err)
	}
	if entriesDeleted != 3 || fieldsDeleted != 3 {
		t.Fatalf("got entriesDeleted=%d fieldsDeleted=%d, want 3/3", entriesDeleted, fieldsDeleted)
	}

	st, err := s.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if st.EntryCount != 0 || st.FieldCount != 0 {
		t.Fatalf("expected empty store after reset, got %+v", st)
	}
}

func TestVacuum(t *testing.T) {
	s := newTestStore(t)
	if err := s.Vacuum(); err != nil {
		t.Fatal(err)
	}
}
