package attendance

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CSVStore keeps the two tables as comma-separated files in one directory. The mutex only
// serialises this process; other instances sharing the files are not coordinated.
type CSVStore struct {
	mu          sync.Mutex
	dir         string
	recordsPath string
	sectorsPath string
	defaults    []string
	clock       Clock
}

// NewCSVStore returns a store writing <dir>/<RecordsTable>.csv and <dir>/<SectorsTable>.csv.
func NewCSVStore(dir string, layout Layout, clock Clock) *CSVStore {
	if clock == nil {
		clock = NewSystemClock(nil)
	}
	return &CSVStore{
		dir:         dir,
		recordsPath: filepath.Join(dir, layout.RecordsTable+".csv"),
		sectorsPath: filepath.Join(dir, layout.SectorsTable+".csv"),
		defaults:    append([]string(nil), layout.DefaultSectors...),
		clock:       clock,
	}
}

// Paths returns the records and sectors file paths.
func (s *CSVStore) Paths() (records, sectors string) {
	return s.recordsPath, s.sectorsPath
}

// EnsureSchema creates the directory and writes the header row (and the catalog seed) into
// any table file that is missing or empty.
func (s *CSVStore) EnsureSchema(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return connectionError("ensure_schema", err, fmt.Sprintf("check that %s is writable", s.dir))
	}

	if err := ensureTable(s.recordsPath, [][]string{RecordHeader}); err != nil {
		return connectionError("ensure_schema", err, fmt.Sprintf("check permissions on %s", s.recordsPath))
	}

	seed := [][]string{SectorHeader}
	for _, name := range s.defaults {
		seed = append(seed, []string{name})
	}
	if err := ensureTable(s.sectorsPath, seed); err != nil {
		return connectionError("ensure_schema", err, fmt.Sprintf("check permissions on %s", s.sectorsPath))
	}
	return nil
}

// Append adds one row to the records file.
func (s *CSVStore) Append(_ context.Context, record Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Timestamp = FormatTimestamp(s.clock.Now())
	if err := appendRows(s.recordsPath, [][]string{record.row()}); err != nil {
		return Record{}, writeError("append_record", err)
	}
	return record, nil
}

// LoadAll parses every data row of the records file.
func (s *CSVStore) LoadAll(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := readRows(s.recordsPath)
	if err != nil {
		return nil, readError("load_records", err)
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		records = append(records, recordFromRow(row))
	}
	return records, nil
}

// Sectors returns the catalog without its header.
func (s *CSVStore) Sectors(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readSectors()
}

// AppendSector re-reads the file and appends name when absent.
func (s *CSVStore) AppendSector(_ context.Context, name string) (AppendOutcome, error) {
	name, err := normalizeSectorName(name)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readSectors()
	if err != nil {
		return 0, err
	}
	if containsExact(current, name) {
		return SectorExists, nil
	}
	if err := appendRows(s.sectorsPath, [][]string{{name}}); err != nil {
		return 0, writeError("append_sector", err)
	}
	return SectorAdded, nil
}

func (s *CSVStore) readSectors() ([]string, error) {
	rows, err := readRows(s.sectorsPath)
	if err != nil {
		return nil, readError("load_sectors", err)
	}
	sectors := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 || blankRow(row) {
			continue
		}
		sectors = append(sectors, strings.TrimSpace(row[0]))
	}
	return sectors, nil
}

// ensureTable creates path when missing and writes rows into it when it is empty, so a
// touched or half-created file still gets its header.
func ensureTable(path string, rows [][]string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	if info.Size() > 0 {
		return f.Close()
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func appendRows(path string, rows [][]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// readRows returns the data rows, skipping the header.
func readRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	header := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
