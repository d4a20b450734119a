package warehouse_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/bankview/internal/query"
	"github.com/derickschaefer/bankview/internal/util"
	"github.com/derickschaefer/bankview/internal/warehouse"
)

func openTestWarehouse(t *testing.T) *warehouse.Client {
	t.Helper()
	c, err := warehouse.Open(filepath.Join(t.TempDir(), "warehouse.db"), warehouse.Options{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return c
}

const extract = `id_rssd,name,date,variable,variable_name,value,unit
1,Bank A,2022-12-31,ASSET,Total Assets,200000000000,USD
1,Bank A,2022-12-31,DEP,Total deposits,150,USD
1,Bank A,2021-12-31,DEP,Total deposits,140,USD
2,Bank B,2022-12-31,ASSET,Total Assets,300000000000,USD
2,Bank B,2022-12-31,DEP,Total deposits,$1234abc,USD
2,Bank B,2022-12-31,DEPINS,Estimated Insured Deposits,,USD
3,Bank C,2022-12-31,ASSET,Total Assets,5000,USD
3,Bank C,2022-12-31,DEP,Total deposits,10,EUR
`

func TestImportAndQuery(t *testing.T) {
	c := openTestWarehouse(t)
	ctx := context.Background()

	res, err := c.ImportCSV(ctx, strings.NewReader(extract))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if res.Entities != 3 || res.Points != 8 {
		t.Errorf("got %+v", res)
	}

	rows, err := c.Query(ctx, query.IncomeQuery([]string{"Bank A", "Bank B", "Bank C"}, query.DefaultOptions()))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	// Bank A 2021 is before the cutoff; Bank C's deposit row is EUR.
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %+v", len(rows), rows)
	}
	byValue := map[string]bool{}
	for _, r := range rows {
		if r.Date != "2022-12-31" {
			t.Errorf("unexpected date %q", r.Date)
		}
		if r.Unit != "USD" {
			t.Errorf("unexpected unit %q", r.Unit)
		}
		byValue[r.Value] = true
	}
	for _, want := range []string{"150", "$1234abc", ""} {
		if !byValue[want] {
			t.Errorf("missing value %q in %+v", want, rows)
		}
	}
}

func TestListBanksRankOrder(t *testing.T) {
	c := openTestWarehouse(t)
	ctx := context.Background()
	if _, err := c.ImportCSV(ctx, strings.NewReader(extract)); err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	names, err := c.ListBanks(ctx, query.LargestBanksQuery(query.DefaultOptions()))
	if err != nil {
		t.Fatalf("ListBanks: %v", err)
	}
	if strings.Join(names, "|") != "Bank B|Bank A" {
		t.Errorf("got %v", names)
	}
}

func TestQueryWrongShape(t *testing.T) {
	c := openTestWarehouse(t)
	_, err := c.Query(context.Background(), "SELECT 1, 2")
	if err == nil || !strings.Contains(err.Error(), "expected 5 columns") {
		t.Errorf("expected column-count error, got %v", err)
	}
}

func TestQuerySyntaxErrorNotRetried(t *testing.T) {
	c := openTestWarehouse(t)
	_, err := c.Query(context.Background(), "SELEC nonsense")
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "attempts") {
		t.Errorf("syntax errors must not be retried: %v", err)
	}
	if warehouse.IsTransient(err) {
		t.Error("syntax error reported as transient")
	}
}

func TestImportBadRows(t *testing.T) {
	c := openTestWarehouse(t)
	in := `id_rssd,name,date,variable,variable_name,value,unit
1,Bank A,2022-12-31,DEP,Total deposits,1,USD
,Nameless,2022-12-31,DEP,Total deposits,1,USD
2,Bank B,2022-12-31
`
	res, err := c.ImportCSV(context.Background(), strings.NewReader(in))
	if err == nil {
		t.Fatal("expected row errors")
	}
	var me *util.MultiError
	if !errors.As(err, &me) || len(me.Errors) != 2 {
		t.Errorf("expected 2 collected errors, got %v", err)
	}
	if res.Points != 1 || res.Skipped != 2 {
		t.Errorf("got %+v", res)
	}
}

func TestImportBadHeader(t *testing.T) {
	c := openTestWarehouse(t)
	_, err := c.ImportCSV(context.Background(), strings.NewReader("a,b,c\n1,2,3\n"))
	if err == nil || !strings.Contains(err.Error(), "header") {
		t.Errorf("expected header error, got %v", err)
	}
}

func TestQuarterEnds(t *testing.T) {
	start := time.Date(2022, 3, 31, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	dates, err := warehouse.QuarterEnds(start, end)
	if err != nil {
		t.Fatalf("QuarterEnds: %v", err)
	}
	var got []string
	for _, d := range dates {
		got = append(got, d.Format("2006-01-02"))
	}
	want := "2022-03-31|2022-06-30|2022-09-30|2022-12-31"
	if strings.Join(got, "|") != want {
		t.Errorf("got %v", got)
	}
}

func TestSeedIsDeterministicAndRankable(t *testing.T) {
	ctx := context.Background()
	a := openTestWarehouse(t)
	b := openTestWarehouse(t)
	ra, err := a.Seed(ctx, warehouse.SeedOptions{Seed: 7})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	rb, err := b.Seed(ctx, warehouse.SeedOptions{Seed: 7})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if ra != rb {
		t.Errorf("same seed gave %+v and %+v", ra, rb)
	}

	names, err := a.ListBanks(ctx, query.LargestBanksQuery(query.DefaultOptions()))
	if err != nil {
		t.Fatalf("ListBanks: %v", err)
	}
	if len(names) < 10 {
		t.Fatalf("expected at least 10 ranked banks, got %d", len(names))
	}
	for _, n := range names {
		if n == "Small Town Savings Bank" {
			t.Error("bank below the asset threshold was ranked")
		}
	}

	rows, err := a.Query(ctx, query.IncomeQuery(names[:2], query.DefaultOptions()))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("expected income rows")
	}
}
