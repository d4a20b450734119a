// Package dashboard drives the bank financials dashboard: it lists the
// largest banks, resolves the user's selection, fetches and reshapes their
// financials, and builds the charts. Every step is an explicit call; the
// CLI and the HTTP server are thin shells over it.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/derickschaefer/bankview/internal/chart"
	"github.com/derickschaefer/bankview/internal/model"
	"github.com/derickschaefer/bankview/internal/query"
	"github.com/derickschaefer/bankview/internal/transform"
	"github.com/derickschaefer/bankview/internal/util"
)

// DefaultCount is the size of the default bank selection.
const DefaultCount = 10

// Querier runs a long-format query. *warehouse.Client satisfies it.
type Querier interface {
	Query(ctx context.Context, text string) ([]model.RawRow, error)
}

// BankLister returns the ranked bank listing and whether it came from
// cache. *bankcache.Cache satisfies it.
type BankLister interface {
	Get(ctx context.Context) (model.BankList, bool, error)
}

// Options configures a Dashboard.
type Options struct {
	Query        query.Options
	DefaultCount int // zero means DefaultCount
}

// Dashboard ties the warehouse and the bank cache together.
type Dashboard struct {
	wh    Querier
	banks BankLister
	opts  Options
}

// New returns a Dashboard. A zero Options.Query means query.DefaultOptions.
func New(wh Querier, banks BankLister, opts Options) *Dashboard {
	if opts.Query.Metrics == nil {
		opts.Query = query.DefaultOptions()
	}
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = DefaultCount
	}
	return &Dashboard{wh: wh, banks: banks, opts: opts}
}

// LargestBanks returns the ranked listing with its default selection
// filled in, and whether it was a cache hit.
func (d *Dashboard) LargestBanks(ctx context.Context) (model.BankList, bool, error) {
	list, hit, err := d.banks.Get(ctx)
	if err != nil {
		return model.BankList{}, false, fmt.Errorf("listing banks: %w", err)
	}
	list.Default = DefaultSelection(list.Names, d.opts.DefaultCount)
	return list, hit, nil
}

// DefaultSelection returns the first n names, or all of them if fewer.
func DefaultSelection(names []string, n int) []string {
	if n > len(names) {
		n = len(names)
	}
	if n < 0 {
		n = 0
	}
	return append([]string(nil), names[:n]...)
}

// ResolveBanks maps user-typed names onto eligible bank names: an exact
// match first, then a unique case-insensitive match, then the single best
// fuzzy match. Input that matches nothing, or ties between fuzzy matches,
// is an error naming the candidates. Duplicates are dropped.
func ResolveBanks(input, eligible []string) ([]string, error) {
	exact := make(map[string]bool, len(eligible))
	folded := make(map[string][]string, len(eligible))
	for _, e := range eligible {
		exact[e] = true
		k := strings.ToLower(e)
		folded[k] = append(folded[k], e)
	}

	var out []string
	var errs util.MultiError
	for _, in := range util.NormaliseNames(input) {
		if exact[in] {
			out = append(out, in)
			continue
		}
		if m := folded[strings.ToLower(in)]; len(m) == 1 {
			out = append(out, m[0])
			continue
		}
		ranks := fuzzy.RankFindNormalizedFold(in, eligible)
		if len(ranks) == 0 {
			errs.Add(fmt.Errorf("no eligible bank matches %q", in))
			continue
		}
		sort.Stable(ranks)
		if len(ranks) > 1 && ranks[0].Distance == ranks[1].Distance {
			errs.Add(fmt.Errorf("%q is ambiguous: %s", in, candidates(ranks)))
			continue
		}
		out = append(out, ranks[0].Target)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return util.NormaliseNames(out), nil
}

func candidates(ranks fuzzy.Ranks) string {
	var names []string
	for i, r := range ranks {
		if i == 5 {
			names = append(names, "...")
			break
		}
		names = append(names, fmt.Sprintf("%q", r.Target))
	}
	return strings.Join(names, ", ")
}

// Table fetches the financials of the named banks and reshapes them into a
// wide table. An empty selection yields the empty table without querying.
func (d *Dashboard) Table(ctx context.Context, names []string) (*model.WideTable, error) {
	names = util.NormaliseNames(names)
	if len(names) == 0 {
		return model.NewWideTable([]string{model.ColDate, model.ColEntity}), nil
	}
	rows, err := d.wh.Query(ctx, query.IncomeQuery(names, d.opts.Query))
	if err != nil {
		return nil, fmt.Errorf("fetching financials: %w", err)
	}
	slog.Debug("dashboard: fetched", "banks", len(names), "rows", len(rows))
	t, err := transform.Reshape(rows)
	if err != nil {
		return nil, fmt.Errorf("reshaping financials: %w", err)
	}
	return t, nil
}

// Charts builds one chart per designated metric still present in t.
func (d *Dashboard) Charts(t *model.WideTable) model.ChartSet {
	return chart.BuildCharts(t, d.opts.Query.Metrics)
}

// Metrics returns the designated metrics in chart order.
func (d *Dashboard) Metrics() []string {
	return append([]string(nil), d.opts.Query.Metrics...)
}
