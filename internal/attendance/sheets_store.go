package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// sheetsAPI is the slice of the Sheets v4 API the store needs.
type sheetsAPI interface {
	SheetTitles(ctx context.Context) ([]string, error)
	AddSheet(ctx context.Context, title string) error
	Values(ctx context.Context, rng string) ([][]string, error)
	AppendRows(ctx context.Context, rng string, rows [][]string) error
	UpdateRows(ctx context.Context, rng string, rows [][]string) error
}

// SheetsConfig configures the Google Sheets backend.
type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsJSON []byte
	Layout          Layout
	Clock           Clock
	// Endpoint overrides the API base URL (emulators, tests).
	Endpoint string
}

// SheetsStore keeps both tables as sheets of one spreadsheet.
type SheetsStore struct {
	api           sheetsAPI
	spreadsheetID string
	identity      string
	layout        Layout
	clock         Clock
}

type serviceAccountKey struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// ParseServiceAccount checks the key material and returns the account e-mail.
func ParseServiceAccount(credentials []byte) (string, error) {
	if len(strings.TrimSpace(string(credentials))) == 0 {
		return "", errors.New("service account credentials are empty")
	}
	var key serviceAccountKey
	if err := json.Unmarshal(credentials, &key); err != nil {
		return "", fmt.Errorf("service account credentials are not valid JSON: %w", err)
	}
	if key.Type != "service_account" || key.ClientEmail == "" || key.PrivateKey == "" {
		return "", errors.New("credentials are not a service account key (need type, client_email and private_key)")
	}
	return key.ClientEmail, nil
}

// NewSheetsStore builds a store talking to the Sheets API with service account credentials.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig) (*SheetsStore, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, connectionError("connect", errors.New("spreadsheet id is empty"), "set SHEETS_SPREADSHEET_ID")
	}
	identity, err := ParseServiceAccount(cfg.CredentialsJSON)
	if err != nil {
		return nil, connectionError("connect", err, "provide a service account key via GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON")
	}

	opts := []option.ClientOption{
		option.WithCredentialsJSON(cfg.CredentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, connectionError("connect", err, "check the service account key")
	}
	return newSheetsStore(&googleSheets{svc: svc, id: cfg.SpreadsheetID}, cfg.SpreadsheetID, identity, cfg.Layout, cfg.Clock), nil
}

func newSheetsStore(api sheetsAPI, spreadsheetID, identity string, layout Layout, clock Clock) *SheetsStore {
	if clock == nil {
		clock = NewSystemClock(nil)
	}
	return &SheetsStore{api: api, spreadsheetID: spreadsheetID, identity: identity, layout: layout, clock: clock}
}

// EnsureSchema adds missing sheets and writes header rows and the catalog seed into empty ones.
func (s *SheetsStore) EnsureSchema(ctx context.Context) error {
	titles, err := s.api.SheetTitles(ctx)
	if err != nil {
		return s.classify("ensure_schema", err, KindConnection)
	}

	tables := []struct {
		title string
		rng   string
		rows  [][]string
	}{
		{s.layout.RecordsTable, "A1:E1", [][]string{RecordHeader}},
		{s.layout.SectorsTable, "A1:A1", s.sectorSeed()},
	}
	for _, table := range tables {
		if !containsExact(titles, table.title) {
			if err := s.api.AddSheet(ctx, table.title); err != nil {
				return s.classify("ensure_schema", err, KindConnection)
			}
		}
		header, err := s.api.Values(ctx, a1(table.title, table.rng))
		if err != nil {
			return s.classify("ensure_schema", err, KindConnection)
		}
		if len(header) > 0 && !blankRow(header[0]) {
			continue
		}
		target := a1(table.title, fmt.Sprintf("A1:%s%d", lastColumn(table.rows), len(table.rows)))
		if err := s.api.UpdateRows(ctx, target, table.rows); err != nil {
			return s.classify("ensure_schema", err, KindConnection)
		}
	}
	return nil
}

func (s *SheetsStore) sectorSeed() [][]string {
	rows := [][]string{SectorHeader}
	for _, name := range s.layout.DefaultSectors {
		rows = append(rows, []string{name})
	}
	return rows
}

// Append adds one row below the records table.
func (s *SheetsStore) Append(ctx context.Context, record Record) (Record, error) {
	record.Timestamp = FormatTimestamp(s.clock.Now())
	if err := s.api.AppendRows(ctx, a1(s.layout.RecordsTable, "A:E"), [][]string{record.row()}); err != nil {
		return Record{}, s.classify("append_record", err, KindWrite)
	}
	return record, nil
}

// LoadAll reads every data row of the records sheet.
func (s *SheetsStore) LoadAll(ctx context.Context) ([]Record, error) {
	rows, err := s.api.Values(ctx, a1(s.layout.RecordsTable, "A2:E"))
	if err != nil {
		return nil, s.classify("load_records", err, KindRead)
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

// Sectors reads the catalog column below the header.
func (s *SheetsStore) Sectors(ctx context.Context) ([]string, error) {
	rows, err := s.api.Values(ctx, a1(s.layout.SectorsTable, "A2:A"))
	if err != nil {
		return nil, s.classify("load_sectors", err, KindRead)
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

// AppendSector re-reads the catalog and appends name when absent. Two instances racing on
// the same new name can both append it; Sheets has no conditional append.
func (s *SheetsStore) AppendSector(ctx context.Context, name string) (AppendOutcome, error) {
	name, err := normalizeSectorName(name)
	if err != nil {
		return 0, err
	}
	current, err := s.Sectors(ctx)
	if err != nil {
		return 0, err
	}
	if containsExact(current, name) {
		return SectorExists, nil
	}
	if err := s.api.AppendRows(ctx, a1(s.layout.SectorsTable, "A:A"), [][]string{{name}}); err != nil {
		return 0, s.classify("append_sector", err, KindWrite)
	}
	return SectorAdded, nil
}

// classify maps auth and not-found API responses to connection errors with a remediation hint.
func (s *SheetsStore) classify(op string, err error, kind StoreErrorKind) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return connectionError(op, err, fmt.Sprintf("share the spreadsheet %s with %s as editor", s.spreadsheetID, s.identity))
		case http.StatusNotFound:
			return connectionError(op, err, fmt.Sprintf("check that spreadsheet %s exists and is shared with %s", s.spreadsheetID, s.identity))
		}
	}
	return &StoreError{Kind: kind, Op: op, Err: err}
}

// a1 builds an A1 range with a quoted sheet title.
func a1(title, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(title, "'", "''"), cells)
}

func lastColumn(rows [][]string) string {
	width := 1
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return string(rune('A' + width - 1))
}

type googleSheets struct {
	svc *sheets.Service
	id  string
}

func (g *googleSheets) SheetTitles(ctx context.Context) ([]string, error) {
	ss, err := g.svc.Spreadsheets.Get(g.id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

func (g *googleSheets) AddSheet(ctx context.Context, title string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
		}},
	}
	_, err := g.svc.Spreadsheets.BatchUpdate(g.id, req).Context(ctx).Do()
	return err
}

func (g *googleSheets) Values(ctx context.Context, rng string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.id, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (g *googleSheets) AppendRows(ctx context.Context, rng string, rows [][]string) error {
	_, err := g.svc.Spreadsheets.Values.Append(g.id, rng, &sheets.ValueRange{Values: toCells(rows)}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (g *googleSheets) UpdateRows(ctx context.Context, rng string, rows [][]string) error {
	_, err := g.svc.Spreadsheets.Values.Update(g.id, rng, &sheets.ValueRange{Values: toCells(rows)}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func toCells(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		out[i] = cells
	}
	return out
}
