package enrich

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"leadetl/internal/merge"
	"leadetl/internal/table"
)

// ColState is the state column of the per-report tables.
const ColState = "state"

// FedStats are the per-state statistics computed for every report, in column
// order.
var FedStats = []string{"std", "median", "mean", "IQR", "QR"}

// FedFile is one Federal Reserve Bank of Philadelphia JSON report. The parent
// directory names the department, the base name the indicator.
type FedFile struct {
	Path string
	Data []byte
}

// FedReport reduces one report to a row per state holding the statistics of
// its "total" series. Missing points take the state mean before the
// statistics are computed.
func FedReport(f FedFile) (*table.Table, error) {
	if !gjson.ValidBytes(f.Data) {
		return nil, fmt.Errorf("enrich: %s: invalid JSON", f.Path)
	}
	data := gjson.GetBytes(f.Data, "data")
	if !data.IsArray() {
		return nil, fmt.Errorf("enrich: %s: no data array", f.Path)
	}

	var (
		order  []string
		series = map[string][]float64{}
		gaps   = map[string]int{}
	)
	data.ForEach(func(_, item gjson.Result) bool {
		state := strings.TrimSpace(item.Get("state").String())
		if state == "" {
			return true
		}
		if _, seen := series[state]; !seen {
			order = append(order, state)
			series[state] = nil
		}
		for _, p := range totalPoints(item) {
			v := p.Get("dollars")
			if !v.Exists() {
				v = p.Get("percentage")
			}
			if v.Type != gjson.Number {
				gaps[state]++
				continue
			}
			series[state] = append(series[state], v.Float())
		}
		return true
	})

	dept, name := fedNames(f.Path)
	cols := []string{ColState}
	for _, s := range FedStats {
		cols = append(cols, dept+"_"+name+"_"+s)
	}
	out := table.New(dept+"_"+name, cols...)
	for _, state := range order {
		xs := series[state]
		if n := gaps[state]; n > 0 && len(xs) > 0 {
			m := mean(xs)
			for i := 0; i < n; i++ {
				xs = append(xs, m)
			}
		}
		p25 := percentile(xs, 25)
		out.Append(state,
			formatStat(sampleStd(xs)),
			formatStat(median(xs)),
			formatStat(mean(xs)),
			formatStat(percentile(xs, 75)-p25),
			formatStat(percentile(xs, 100)-p25),
		)
	}
	return out, nil
}

// totalPoints returns the points of the "total" group. Most reports carry
// them as item.total; the aggregate-debt report nests a total series under
// each of total, current and delinquent.
func totalPoints(item gjson.Result) []gjson.Result {
	tot := item.Get("total")
	if tot.IsArray() {
		return tot.Array()
	}
	var out []gjson.Result
	for _, k := range []string{"total", "current", "delinquent"} {
		out = append(out, item.Get(k+".total").Array()...)
	}
	return out
}

func fedNames(path string) (dept, name string) {
	dept = strings.ReplaceAll(filepath.Base(filepath.Dir(path)), " ", "_")
	name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return dept, name
}

// FedPreprocessedName is the file name of the per-report CSV:
// "<Department>_<Title Cased Indicator>.csv" with spaces as underscores.
func FedPreprocessedName(path string) string {
	parent := filepath.Base(filepath.Dir(path))
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
	return strings.ReplaceAll(parent+"_"+name+".csv", " ", "_")
}

// FedReserve merges per-report tables on state, in the given order, and
// replaces state names with USPS codes. An unrecognized state is an error.
func FedReserve(reports []*table.Table) (Dataset, error) {
	if len(reports) == 0 {
		return Dataset{}, fmt.Errorf("enrich: federal reserve: no reports")
	}
	out, err := chain("federal_reserve", ColState, merge.KeepFirst, reports...)
	if err != nil {
		return Dataset{}, err
	}
	ix, ok := out.Index(ColState)
	if !ok {
		return Dataset{}, &table.MissingColumnError{Table: out.Name, Column: ColState}
	}
	for i := range out.Rows {
		code, err := StateCode(out.Rows[i].V[ix])
		if err != nil {
			return Dataset{}, err
		}
		out.Rows[i].V[ix] = code
	}
	if err := out.Rename(map[string]string{ColState: KeyState}); err != nil {
		return Dataset{}, err
	}
	return Dataset{Table: out, Key: KeyState}, nil
}

func formatStat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return table.FormatFloat(f)
}
