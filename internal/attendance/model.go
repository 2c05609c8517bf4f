package attendance

import (
	"context"
	"strings"
	"time"
)

// TimestampLayout is the fixed wire format of Record.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout is the layout of the date component of a timestamp, used by the date filter.
const DateLayout = "2006-01-02"

const (
	// SectorOther is the selector sentinel that asks for a free-text sector name.
	SectorOther = "Outros"
	// FilterAll disables the sector or leader filter.
	FilterAll = "Todos"
)

// RecordHeader is the header row of the records table.
var RecordHeader = []string{"Matricula", "Setor", "Atingimento", "DataHora", "Lider"}

// SectorHeader is the header row of the sector catalog table.
var SectorHeader = []string{"Setor"}

// DefaultSectors seeds an empty catalog.
var DefaultSectors = []string{
	"Cabide",
	"Runner",
	"Descargar de caminhão",
}

// DefaultTiers lists the attainment tiers offered by the form.
var DefaultTiers = []string{
	"Menor que 120%",
	"Entre 120% e 130%",
	"Entre 130% e 140%",
	"Maior que 140%",
}

// Record is one submitted activity observation. Records are never updated or deleted.
type Record struct {
	BadgeID    string `json:"badge_id"`
	Sector     string `json:"sector"`
	Tier       string `json:"tier"`
	Timestamp  string `json:"timestamp"`
	LeaderName string `json:"leader_name"`
}

// Time parses Timestamp in loc. The zero time is returned for malformed values.
func (r Record) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(TimestampLayout, r.Timestamp, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Date returns the YYYY-MM-DD component of the timestamp.
func (r Record) Date() string {
	if len(r.Timestamp) < len(DateLayout) {
		return ""
	}
	return r.Timestamp[:len(DateLayout)]
}

func (r Record) row() []string {
	return []string{r.BadgeID, r.Sector, r.Tier, r.Timestamp, r.LeaderName}
}

// recordFromRow parses a table row by column position. Missing cells become empty strings.
func recordFromRow(row []string) Record {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	return Record{
		BadgeID:    cell(0),
		Sector:     cell(1),
		Tier:       cell(2),
		Timestamp:  cell(3),
		LeaderName: cell(4),
	}
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// FormatTimestamp renders t in the record timestamp layout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// AppendOutcome reports what AppendSector did.
type AppendOutcome int

const (
	// SectorAdded means a new catalog row was written.
	SectorAdded AppendOutcome = iota + 1
	// SectorExists means the name was already present and nothing was written.
	SectorExists
)

func (o AppendOutcome) String() string {
	switch o {
	case SectorAdded:
		return "added"
	case SectorExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// Layout names the two tables of a backing store and the catalog seed.
type Layout struct {
	RecordsTable   string
	SectorsTable   string
	DefaultSectors []string
}

// DefaultLayout returns the standard table names with the default seed.
func DefaultLayout() Layout {
	return Layout{
		RecordsTable:   "Registros",
		SectorsTable:   "Setores",
		DefaultSectors: append([]string(nil), DefaultSectors...),
	}
}

// RecordStore is the append-only table of submitted records.
type RecordStore interface {
	// Append writes one row, assigning the timestamp, and returns the stored record.
	Append(ctx context.Context, record Record) (Record, error)
	// LoadAll returns every row of the table in storage order.
	LoadAll(ctx context.Context) ([]Record, error)
}

// SectorCatalog is the ordered, duplicate-free list of sector names.
type SectorCatalog interface {
	// Sectors returns all names except the header.
	Sectors(ctx context.Context) ([]string, error)
	// AppendSector adds name unless it is already present (case-sensitive).
	AppendSector(ctx context.Context, name string) (AppendOutcome, error)
}

// Store bundles both tables of one backend.
type Store interface {
	// EnsureSchema creates missing tables, header rows and the catalog seed. It is idempotent.
	EnsureSchema(ctx context.Context) error
	RecordStore
	SectorCatalog
}

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

func normalizeSectorName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", &ValidationError{Problems: []string{msgSectorNameEmpty}}
	}
	return trimmed, nil
}

func containsExact(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
