package report

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

// Unknown is the bucket for flaws without a value in a dimension
const Unknown = "unknown"

// Summary aggregates statistics over a set of records
type Summary struct {
	Records   int
	Malformed int

	ByType     map[string]int
	BySeverity map[string]int
	ByPhase    map[string]int
	ByVendor   map[string]int
	ByYear     map[string]int
	ByLabel    map[string]int
}

// Count is one bucket of a dimension
type Count struct {
	Key   string
	Count int
}

// Summarize counts records by type, severity band, phase, vendor, year
// reported and label. Labels are counted for every record; the other
// dimensions only for records whose body parses.
func Summarize(records []*types.Record) *Summary {
	s := &Summary{
		ByType:     map[string]int{},
		BySeverity: map[string]int{},
		ByPhase:    map[string]int{},
		ByVendor:   map[string]int{},
		ByYear:     map[string]int{},
		ByLabel:    map[string]int{},
	}
	for _, r := range records {
		s.Records++
		for _, l := range r.Labels {
			s.ByLabel[l]++
		}
		flaw, err := r.Flaw()
		if err != nil {
			slog.Debug("skipping malformed record in summary", "record", r.ID, "error", err)
			s.Malformed++
			continue
		}
		s.Add(flaw)
	}
	return s
}

// Add counts one flaw in every flaw dimension
func (s *Summary) Add(f *types.Flaw) {
	s.ByType[orUnknown(string(f.Type))]++
	s.BySeverity[f.SeverityBand()]++
	s.ByPhase[orUnknown(f.Details.Phase)]++
	vendor := ""
	if f.Vendor != nil {
		vendor = *f.Vendor
	}
	s.ByVendor[orUnknown(vendor)]++
	s.ByYear[year(f)]++
}

// year is the year reported, falling back to the year detected
func year(f *types.Flaw) string {
	for _, date := range []string{f.Details.DateReported, f.Details.DateDetected} {
		if len(date) >= 4 {
			return date[:4]
		}
	}
	return Unknown
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}

// Sorted returns the buckets of m by descending count, then key
func Sorted(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

var severityOrder = []string{types.BandCritical, types.BandHigh, types.BandMedium, types.BandLow, types.BandNone}

// Render writes one table per dimension
func (s *Summary) Render(w io.Writer) {
	fmt.Fprintf(w, "%d records (%d malformed)\n\n", s.Records, s.Malformed)

	severities := make([]Count, 0, len(severityOrder))
	for _, band := range severityOrder {
		if n := s.BySeverity[band]; n > 0 {
			severities = append(severities, Count{Key: band, Count: n})
		}
	}

	sections := []struct {
		title  string
		counts []Count
	}{
		{"Type", Sorted(s.ByType)},
		{"Severity", severities},
		{"Phase", Sorted(s.ByPhase)},
		{"Vendor", Sorted(s.ByVendor)},
		{"Year", sortedByKey(s.ByYear)},
		{"Label", Sorted(s.ByLabel)},
	}
	for _, section := range sections {
		if len(section.counts) == 0 {
			continue
		}
		fmt.Fprintln(w, renderCounts(section.title, section.counts, s.Records))
		fmt.Fprintln(w)
	}
}

func renderCounts(title string, counts []Count, total int) string {
	tw := table.NewWriter()
	tw.SetTitle(title)
	tw.AppendHeader(table.Row{title, "Count", "Share"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	for _, c := range counts {
		share := 0.0
		if total > 0 {
			share = 100 * float64(c.Count) / float64(total)
		}
		tw.AppendRow(table.Row{c.Key, c.Count, fmt.Sprintf("%.1f%%", share)})
	}
	return tw.Render()
}

func sortedByKey(m map[string]int) []Count {
	out := Sorted(m)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
