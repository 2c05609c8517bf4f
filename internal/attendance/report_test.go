package attendance

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	return []Record{
		{BadgeID: "1001", Sector: "Cabide", Tier: "Menor que 120%", Timestamp: "2025-06-02 07:30:00", LeaderName: "Ana"},
		{BadgeID: "1002", Sector: "Runner", Tier: "Maior que 140%", Timestamp: "2025-06-03 09:10:00", LeaderName: "Bruno"},
		{BadgeID: "1003", Sector: "Cabide", Tier: "Entre 120% e 130%", Timestamp: "2025-06-02 11:45:00", LeaderName: "Ana"},
		{BadgeID: "1004", Sector: "Descargar de caminhão", Tier: "Menor que 120%", Timestamp: "2025-06-03 06:05:00", LeaderName: "Carla"},
		{BadgeID: "1005", Sector: "Cabide", Tier: "Menor que 120%", Timestamp: "2025-06-03 09:10:00", LeaderName: "Bruno"},
	}
}

func badges(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.BadgeID)
	}
	return out
}

func TestBuildReportSortsNewestFirstAndKeepsTies(t *testing.T) {
	input := sampleRecords()
	report := BuildReport(input, Filter{})

	// 1002 and 1005 share a timestamp; storage order decides.
	want := []string{"1002", "1005", "1004", "1003", "1001"}
	if diff := cmp.Diff(want, badges(report.Records)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "1001", input[0].BadgeID, "input must not be reordered")
}

func TestBuildReportAllFilterEqualsUnfiltered(t *testing.T) {
	unfiltered := BuildReport(sampleRecords(), Filter{})
	all := BuildReport(sampleRecords(), Filter{Sector: FilterAll, Leader: FilterAll})
	if diff := cmp.Diff(unfiltered, all); diff != "" {
		t.Fatalf("Todos filter changed the report (-unfiltered +all):\n%s", diff)
	}
}

func TestBuildReportFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "sector", filter: Filter{Sector: "Cabide"}, want: []string{"1005", "1003", "1001"}},
		{name: "leader", filter: Filter{Leader: "Bruno"}, want: []string{"1002", "1005"}},
		{name: "date", filter: Filter{Date: "2025-06-02"}, want: []string{"1003", "1001"}},
		{name: "combined", filter: Filter{Sector: "Cabide", Leader: "Ana", Date: "2025-06-02"}, want: []string{"1003", "1001"}},
		{name: "no match", filter: Filter{Sector: "Runner", Date: "2025-06-02"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := BuildReport(sampleRecords(), tt.filter)
			require.Equal(t, tt.want, badges(report.Records))
			require.Equal(t, len(tt.want), report.Summary.Total)
		})
	}
}

func TestBuildReportStatistics(t *testing.T) {
	report := BuildReport(sampleRecords(), Filter{})

	require.Equal(t, Summary{Total: 5, DistinctSectors: 3, DistinctLeaders: 3}, report.Summary)
	want := []Count{
		{Label: "Cabide", Count: 3},
		{Label: "Descargar de caminhão", Count: 1},
		{Label: "Runner", Count: 1},
	}
	if diff := cmp.Diff(want, report.BySector); diff != "" {
		t.Fatalf("sector frequencies (-want +got):\n%s", diff)
	}
	require.Equal(t, Count{Label: "Menor que 120%", Count: 3}, report.ByTier[0])
	require.Equal(t, []string{"Ana", "Bruno", "Carla"}, report.Options.Leaders)
}

func TestBuildReportStatisticsFollowFilter(t *testing.T) {
	report := BuildReport(sampleRecords(), Filter{Leader: "Bruno"})

	require.Equal(t, Summary{Total: 2, DistinctSectors: 2, DistinctLeaders: 1}, report.Summary)
	// Selector options still come from the whole table.
	require.Len(t, report.Options.Sectors, 3)
}

func TestBuildReportLimitsLeaderChart(t *testing.T) {
	leaders := []string{"Ana", "Bruno", "Carla", "Davi", "Elisa", "Fábio", "Gabi"}
	var records []Record
	for i, leader := range leaders {
		// Ana gets 7 records, Bruno 6 and so on.
		for n := 0; n < len(leaders)-i; n++ {
			records = append(records, Record{BadgeID: "2000", Sector: "Runner", Tier: "Menor que 120%", Timestamp: "2025-06-04 10:00:00", LeaderName: leader})
		}
	}

	report := BuildReport(records, Filter{})
	require.Len(t, report.ByLeader, LeaderChartLimit)
	require.Equal(t, "Ana", report.ByLeader[0].Label)
	require.Equal(t, "Elisa", report.ByLeader[LeaderChartLimit-1].Label)
	require.Equal(t, len(leaders), report.Summary.DistinctLeaders)
}

func TestBuildReportEmpty(t *testing.T) {
	report := BuildReport(nil, Filter{Sector: "Cabide"})
	require.NotNil(t, report.Records)
	require.Empty(t, report.Records)
	require.Zero(t, report.Summary.Total)
	require.Empty(t, report.BySector)
}
