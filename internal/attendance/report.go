package attendance

import (
	"sort"
	"strings"
)

// LeaderChartLimit caps the leader frequency table.
const LeaderChartLimit = 5

// Filter selects records for display. Empty or FilterAll values disable a criterion.
type Filter struct {
	Sector string `json:"sector,omitempty"`
	Leader string `json:"leader,omitempty"`
	Date   string `json:"date,omitempty"` // YYYY-MM-DD
}

func (f Filter) sectorActive() bool {
	return f.Sector != "" && f.Sector != FilterAll
}

func (f Filter) leaderActive() bool {
	return f.Leader != "" && f.Leader != FilterAll
}

// Count is one bar of a frequency chart.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Summary holds the three headline counters.
type Summary struct {
	Total           int `json:"total"`
	DistinctSectors int `json:"distinct_sectors"`
	DistinctLeaders int `json:"distinct_leaders"`
}

// FilterOptions lists the values a filter selector can offer.
type FilterOptions struct {
	Sectors []string `json:"sectors"`
	Leaders []string `json:"leaders"`
}

// Report is what the display shows: the filtered table, counters and frequency tables.
type Report struct {
	Records  []Record      `json:"records"`
	Summary  Summary       `json:"summary"`
	BySector []Count       `json:"by_sector"`
	ByTier   []Count       `json:"by_tier"`
	ByLeader []Count       `json:"by_leader"`
	Options  FilterOptions `json:"options"`
	Warnings []string      `json:"warnings,omitempty"`
}

// BuildReport sorts records newest first, applies the filter and computes the statistics
// over the filtered set. The input slice is not modified.
func BuildReport(records []Record, filter Filter) Report {
	sorted := append([]Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	filtered := make([]Record, 0, len(sorted))
	for _, rec := range sorted {
		if filter.sectorActive() && rec.Sector != filter.Sector {
			continue
		}
		if filter.leaderActive() && rec.LeaderName != filter.Leader {
			continue
		}
		if filter.Date != "" && rec.Date() != filter.Date {
			continue
		}
		filtered = append(filtered, rec)
	}

	bySector := frequencies(filtered, func(r Record) string { return r.Sector })
	byLeader := frequencies(filtered, func(r Record) string { return r.LeaderName })

	report := Report{
		Records: filtered,
		Summary: Summary{
			Total:           len(filtered),
			DistinctSectors: len(bySector),
			DistinctLeaders: len(byLeader),
		},
		BySector: bySector,
		ByTier:   frequencies(filtered, func(r Record) string { return r.Tier }),
		ByLeader: byLeader,
		Options: FilterOptions{
			Sectors: distinct(sorted, func(r Record) string { return r.Sector }),
			Leaders: distinct(sorted, func(r Record) string { return r.LeaderName }),
		},
	}
	if len(report.ByLeader) > LeaderChartLimit {
		report.ByLeader = report.ByLeader[:LeaderChartLimit]
	}
	return report
}

// frequencies counts non-empty labels, highest count first and ties by label.
func frequencies(records []Record, label func(Record) string) []Count {
	counts := make(map[string]int)
	for _, rec := range records {
		if key := label(rec); key != "" {
			counts[key]++
		}
	}
	out := make([]Count, 0, len(counts))
	for key, n := range counts {
		out = append(out, Count{Label: key, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func distinct(records []Record, label func(Record) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, rec := range records {
		key := label(rec)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}
