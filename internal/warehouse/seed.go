package warehouse

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/derickschaefer/bankview/internal/model"
	"github.com/derickschaefer/bankview/internal/query"
)

// SeedOptions controls the generated demo warehouse.
type SeedOptions struct {
	Start time.Time // first quarter end; zero means 2021-03-31
	End   time.Time // last quarter end; zero means 2023-12-31
	Seed  uint64    // PRNG seed; the same seed gives the same data
}

type demoBank struct {
	id     string
	name   string
	assets float64 // total assets at the first report date
}

var demoBanks = []demoBank{
	{"852218", "JPMorgan Chase Bank, National Association", 3.2e12},
	{"480228", "Bank of America, National Association", 2.5e12},
	{"476810", "Citibank, National Association", 1.7e12},
	{"451965", "Wells Fargo Bank, National Association", 1.7e12},
	{"504713", "U.S. Bank National Association", 5.5e11},
	{"817824", "PNC Bank, National Association", 5.4e11},
	{"852320", "Truist Bank", 5.3e11},
	{"2182786", "Goldman Sachs Bank USA", 4.8e11},
	{"112837", "Capital One, National Association", 3.9e11},
	{"1456501", "TD Bank, National Association", 3.7e11},
	{"3284070", "Silicon Valley Bank", 2.1e11},
	{"1009983", "Citizens Bank, National Association", 2.2e11},
	{"1225761", "First Republic Bank", 2.1e11},
	{"3443084", "Small Town Savings Bank", 4.2e9},
}

// demoMetrics pairs variable codes with their long names; ASSET is the
// ranking variable and is not one of the charted metrics.
var demoMetrics = []struct {
	code  string
	name  string
	share float64 // fraction of assets
}{
	{"ASSET", "Total Assets", 1},
	{"DEP", query.MetricTotalDeposits, 0.78},
	{"DEPINS", query.MetricInsuredDeposits, 0.42},
	{"NOIJ", query.MetricNetOperatingInc, 0.003},
	{"INTINC", query.MetricTotalInterestInc, 0.008},
}

// QuarterEnds returns the last day of every calendar quarter between start
// and end inclusive.
func QuarterEnds(start, end time.Time) ([]time.Time, error) {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:       rrule.MONTHLY,
		Interval:   3,
		Bymonthday: []int{-1},
		Dtstart:    start,
		Until:      end,
	})
	if err != nil {
		return nil, fmt.Errorf("quarter-end rule: %w", err)
	}
	return r.All(), nil
}

// Seed fills the warehouse with deterministic demo data: quarterly filings
// for a set of banks, with an occasional restated duplicate and an
// occasional malformed numeric token. Existing rows are left in place.
func (c *Client) Seed(ctx context.Context, opts SeedOptions) (ImportResult, error) {
	start, end := opts.Start, opts.End
	if start.IsZero() {
		start = time.Date(2021, 3, 31, 0, 0, 0, 0, time.UTC)
	}
	if end.IsZero() {
		end = time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	dates, err := QuarterEnds(start, end)
	if err != nil {
		return ImportResult{}, err
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	entities := make([]Entity, 0, len(demoBanks))
	var points []Point
	for _, b := range demoBanks {
		entities = append(entities, Entity{IDRSSD: b.id, Name: b.name})
		assets := b.assets
		for qi, d := range dates {
			assets *= 1 + (rng.Float64()-0.45)*0.04
			day := d.Format(model.DateLayout)
			for _, m := range demoMetrics {
				v := assets * m.share * (1 + (rng.Float64()-0.5)*0.02)
				if m.code == "NOIJ" || m.code == "INTINC" {
					// income lines are year-to-date
					v *= float64(int(d.Month())/3) / 4
				}
				val := strconv.FormatFloat(float64(int64(v)), 'f', -1, 64)
				if m.code != "ASSET" && rng.IntN(40) == 0 {
					val = "$" + val + "*"
				}
				points = append(points, Point{
					IDRSSD:       b.id,
					Date:         day,
					Variable:     m.code,
					VariableName: m.name,
					Value:        val,
					Unit:         "USD",
				})
				if m.code != "ASSET" && qi%5 == 2 && rng.IntN(3) == 0 {
					restated := strconv.FormatFloat(float64(int64(v*0.97)), 'f', -1, 64)
					points = append(points, Point{
						IDRSSD:       b.id,
						Date:         day,
						Variable:     m.code,
						VariableName: m.name,
						Value:        restated,
						Unit:         "USD",
					})
				}
			}
		}
	}

	if err := c.Load(ctx, entities, points); err != nil {
		return ImportResult{}, err
	}
	return ImportResult{Entities: len(entities), Points: len(points)}, nil
}
