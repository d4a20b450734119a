package store_test

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/bankview/internal/model"
	"github.com/derickschaefer/bankview/internal/store"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// testDB opens a fresh isolated database in t.TempDir().
func testDB(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fixedClock returns a clock that advances one minute per call.
func fixedClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Minute)
	}
}

func sampleTable() *model.WideTable {
	t := model.NewWideTable([]string{model.ColDate, model.ColEntity, "Total deposits", "Net Operating Income"})
	t.Rows = []model.WideRow{
		{
			Date:   time.Date(2022, 3, 31, 0, 0, 0, 0, time.UTC),
			Entity: "Bank A",
			Values: map[string]float64{"Total deposits": 100, "Net Operating Income": math.NaN()},
		},
	}
	return t
}

// ─── Open / Path ──────────────────────────────────────────────────────────────

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open with nested path: %v", err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path: expected %q, got %q", path, s.Path())
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutBanks(model.BankList{Names: []string{"Bank A"}}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	list, ok, err := s2.GetBanks()
	if err != nil || !ok {
		t.Fatalf("GetBanks after reopen: ok=%v err=%v", ok, err)
	}
	if len(list.Names) != 1 || list.Names[0] != "Bank A" {
		t.Errorf("got %+v", list)
	}
}

// ─── Bank List ────────────────────────────────────────────────────────────────

func TestBanksMissing(t *testing.T) {
	s := testDB(t)
	_, ok, err := s.GetBanks()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("empty store should not have a bank list")
	}
}

func TestBanksRoundTripAndDelete(t *testing.T) {
	s := testDB(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := model.BankList{Names: []string{"B", "A"}, Default: []string{"B"}, FetchedAt: at}
	if err := s.PutBanks(in); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.GetBanks()
	if err != nil || !ok {
		t.Fatalf("GetBanks: ok=%v err=%v", ok, err)
	}
	if strings.Join(got.Names, ",") != "B,A" || !got.FetchedAt.Equal(at) {
		t.Errorf("got %+v", got)
	}
	if err := s.DeleteBanks(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetBanks(); ok {
		t.Error("bank list should be gone after DeleteBanks")
	}
}

// ─── Saved Tables ─────────────────────────────────────────────────────────────

func TestPutTableAssignsIDAndTimestamps(t *testing.T) {
	s := testDB(t)
	s.SetClock(fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	saved, err := s.PutTable(store.SavedTable{Name: "q1", Banks: []string{"Bank A"}, Table: sampleTable()})
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.ID) != 36 {
		t.Errorf("expected a UUID, got %q", saved.ID)
	}
	if saved.CreatedAt.IsZero() || !saved.CreatedAt.Equal(saved.UpdatedAt) {
		t.Errorf("timestamps: %v %v", saved.CreatedAt, saved.UpdatedAt)
	}

	again, err := s.PutTable(saved)
	if err != nil {
		t.Fatal(err)
	}
	if !again.CreatedAt.Equal(saved.CreatedAt) {
		t.Error("resave must keep CreatedAt")
	}
	if !again.UpdatedAt.After(saved.UpdatedAt) {
		t.Error("resave must bump UpdatedAt")
	}
}

func TestGetTablePreservesMissingCells(t *testing.T) {
	s := testDB(t)
	saved, err := s.PutTable(store.SavedTable{Name: "q1", Table: sampleTable()})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.GetTable(saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Table.Rows[0].Entity != "Bank A" || !got.Table.Rows[0].HasDate() {
		t.Errorf("grouping cells lost: %+v", got.Table.Rows[0])
	}
	if got.Table.Rows[0].Value("Total deposits") != 100 {
		t.Errorf("deposits: %v", got.Table.Rows[0].Value("Total deposits"))
	}
	if !math.IsNaN(got.Table.Rows[0].Value("Net Operating Income")) {
		t.Error("missing cell must come back as NaN, not zero")
	}
}

func TestGetTableNotFound(t *testing.T) {
	s := testDB(t)
	_, err := s.GetTable("nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindTable(t *testing.T) {
	s := testDB(t)
	a, _ := s.PutTable(store.SavedTable{Name: "alpha", Table: sampleTable()})
	b, _ := s.PutTable(store.SavedTable{Name: "beta", Table: sampleTable()})

	if got, err := s.FindTable(a.ID); err != nil || got.ID != a.ID {
		t.Errorf("by ID: %v %v", got.ID, err)
	}
	if got, err := s.FindTable("beta"); err != nil || got.ID != b.ID {
		t.Errorf("by name: %v %v", got.ID, err)
	}
	if got, err := s.FindTable(b.ID[:13]); err != nil || got.ID != b.ID {
		t.Errorf("by prefix: %v %v", got.ID, err)
	}
	if _, err := s.FindTable("gamma"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListTablesNewestFirst(t *testing.T) {
	s := testDB(t)
	s.SetClock(fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	for _, name := range []string{"first", "second", "third"} {
		if _, err := s.PutTable(store.SavedTable{Name: name, Table: sampleTable()}); err != nil {
			t.Fatal(err)
		}
	}
	tables, err := s.ListTables()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, tb := range tables {
		names = append(names, tb.Name)
	}
	if strings.Join(names, ",") != "third,second,first" {
		t.Errorf("got %v", names)
	}
}

func TestDeleteTable(t *testing.T) {
	s := testDB(t)
	saved, _ := s.PutTable(store.SavedTable{Name: "x", Table: sampleTable()})
	if err := s.DeleteTable(saved.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetTable(saved.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteTable(saved.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

func TestStatsAndClear(t *testing.T) {
	s := testDB(t)
	_ = s.PutBanks(model.BankList{Names: []string{"A"}})
	_, _ = s.PutTable(store.SavedTable{Name: "x", Table: sampleTable()})
	_, _ = s.PutTable(store.SavedTable{Name: "y", Table: sampleTable()})

	stats, err := s.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 || stats[0].Name != "banks" || stats[1].Name != "tables" {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats[0].Count != 1 || stats[1].Count != 2 {
		t.Errorf("counts: %+v", stats)
	}
	if stats[1].Bytes == 0 {
		t.Error("expected non-zero byte size")
	}

	if err := s.ClearBucket("tables"); err != nil {
		t.Fatal(err)
	}
	tables, _ := s.ListTables()
	if len(tables) != 0 {
		t.Errorf("tables not cleared: %d", len(tables))
	}
	if _, ok, _ := s.GetBanks(); !ok {
		t.Error("clearing tables must not touch banks")
	}

	if err := s.ClearAll(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetBanks(); ok {
		t.Error("ClearAll should remove the bank list")
	}
}

func TestClearUnknownBucket(t *testing.T) {
	s := testDB(t)
	if err := s.ClearBucket("_meta"); err == nil {
		t.Error("internal bucket must not be clearable")
	}
}

func TestCompactKeepsData(t *testing.T) {
	s := testDB(t)
	var last store.SavedTable
	for i := 0; i < 20; i++ {
		saved, err := s.PutTable(store.SavedTable{Name: "t", Table: sampleTable()})
		if err != nil {
			t.Fatal(err)
		}
		last = saved
	}
	if err := s.ClearBucket("banks"); err != nil {
		t.Fatal(err)
	}

	before, after, err := s.Compact()
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if before <= 0 || after <= 0 {
		t.Errorf("sizes: before=%d after=%d", before, after)
	}
	got, err := s.GetTable(last.ID)
	if err != nil {
		t.Fatalf("GetTable after compact: %v", err)
	}
	if got.Table.Rows[0].Value("Total deposits") != sampleTable().Rows[0].Value("Total deposits") {
		t.Error("table changed by compaction")
	}
	if _, err := s.PutTable(store.SavedTable{Name: "after"}); err != nil {
		t.Errorf("store not writable after compact: %v", err)
	}
}
