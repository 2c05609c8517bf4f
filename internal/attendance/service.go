package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/automatistasidl/id-coletivo/internal/observability"
)

// Publisher is notified after a record is appended. Failures never fail the submission.
type Publisher interface {
	PublishRecord(ctx context.Context, record Record) error
}

// Service implements the form and display workflows on top of a Store.
type Service struct {
	store     Store
	policy    Policy
	defaults  []string
	publisher Publisher
	logger    *slog.Logger
	loc       *time.Location
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher registers a record publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithLocation sets the zone timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// NewService wires a Service. defaults is the catalog fallback used when the catalog cannot be read.
func NewService(store Store, policy Policy, defaults []string, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if policy.BadgeMinLength < 1 {
		return nil, fmt.Errorf("badge min length must be positive, got %d", policy.BadgeMinLength)
	}
	if policy.BadgeMaxLength > 0 && policy.BadgeMaxLength < policy.BadgeMinLength {
		return nil, fmt.Errorf("badge max length %d is below min length %d", policy.BadgeMaxLength, policy.BadgeMinLength)
	}
	s := &Service{
		store:    store,
		policy:   policy,
		defaults: append([]string(nil), defaults...),
		logger:   slog.Default(),
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Policy returns the submission rules in force.
func (s *Service) Policy() Policy {
	return s.policy
}

// Location returns the zone timestamps are interpreted in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// EnsureSchema provisions the backing store. Call once at process start.
func (s *Service) EnsureSchema(ctx context.Context) error {
	if err := s.store.EnsureSchema(ctx); err != nil {
		observability.RecordStoreError("ensure_schema")
		return err
	}
	return nil
}

// Sectors lists the catalog. When the catalog cannot be read it falls back to the defaults
// and reports degraded=true instead of failing.
func (s *Service) Sectors(ctx context.Context) (sectors []string, degraded bool) {
	sectors, err := s.store.Sectors(ctx)
	if err != nil {
		observability.RecordStoreError("load_sectors")
		s.logger.WarnContext(ctx, "sector catalog unavailable, using defaults", "error", err)
		return append([]string(nil), s.defaults...), true
	}
	return sectors, false
}

// AddSector appends a sector name to the catalog unless it already exists.
func (s *Service) AddSector(ctx context.Context, name string) (string, AppendOutcome, error) {
	name, err := normalizeSectorName(name)
	if err != nil {
		return "", 0, err
	}
	if name == SectorOther {
		return "", 0, &ValidationError{Problems: []string{msgSectorReserved}}
	}
	outcome, err := s.store.AppendSector(ctx, name)
	if err != nil {
		observability.RecordStoreError("append_sector")
		return name, 0, writeError("append_sector", err)
	}
	if outcome == SectorAdded {
		observability.RecordSectorAdded()
		s.logger.InfoContext(ctx, "sector added to catalog", "sector", name)
	}
	return name, outcome, nil
}

// SubmitResult is what a successful submission reports back to the user.
type SubmitResult struct {
	Record      Record   `json:"record"`
	SectorAdded bool     `json:"sector_added"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Submit validates one form submission and, when valid, appends the new sector (if any) and
// the record. sess may be nil; when present it supplies the leader name if the input omits it
// and is updated after a successful append.
func (s *Service) Submit(ctx context.Context, sess *Session, input SubmitInput) (SubmitResult, error) {
	input = input.normalized()
	if input.LeaderName == "" && sess != nil {
		input.LeaderName = sess.LeaderName
	}

	if err := s.policy.Validate(input); err != nil {
		observability.RecordSubmission(observability.OutcomeRejected)
		return SubmitResult{}, err
	}

	var result SubmitResult
	sector := input.ResolvedSector()

	known, _ := s.Sectors(ctx)
	if !containsExact(known, sector) {
		outcome, err := s.store.AppendSector(ctx, sector)
		switch {
		case err != nil:
			// The record is still written; the catalog can be fixed later.
			observability.RecordStoreError("append_sector")
			s.logger.WarnContext(ctx, "sector catalog append failed", "sector", sector, "error", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("não foi possível adicionar o setor %q ao catálogo", sector))
		case outcome == SectorExists:
			result.Warnings = append(result.Warnings, fmt.Sprintf("o setor %q já existia no catálogo", sector))
		default:
			observability.RecordSectorAdded()
			result.SectorAdded = true
		}
	}

	stored, err := s.store.Append(ctx, Record{
		BadgeID:    input.BadgeID,
		Sector:     sector,
		Tier:       input.Tier,
		LeaderName: input.LeaderName,
	})
	if err != nil {
		observability.RecordSubmission(observability.OutcomeFailed)
		observability.RecordStoreError("append_record")
		s.logger.ErrorContext(ctx, "record append failed", "badge", input.BadgeID, "sector", sector, "error", err)
		return result, writeError("append_record", err)
	}

	result.Record = stored
	observability.RecordSubmission(observability.OutcomeAccepted)
	if t := stored.Time(s.loc); !t.IsZero() {
		observability.RecordAppended(t.Unix())
	}
	sess.remember(stored)

	if s.publisher != nil {
		if err := s.publisher.PublishRecord(ctx, stored); err != nil {
			s.logger.WarnContext(ctx, "record event publish failed", "error", err)
		}
	}

	s.logger.InfoContext(ctx, "record appended",
		"badge", stored.BadgeID,
		"sector", stored.Sector,
		"tier", stored.Tier,
		"leader", stored.LeaderName,
		"timestamp", stored.Timestamp,
	)
	return result, nil
}

// Records loads the full table. On failure it returns an empty slice together with the error.
func (s *Service) Records(ctx context.Context) ([]Record, error) {
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		observability.RecordStoreError("load_records")
		return []Record{}, readError("load_records", err)
	}
	return records, nil
}

// Report builds the display for filter. A read failure degrades to an empty report with a warning.
func (s *Service) Report(ctx context.Context, filter Filter) Report {
	records, err := s.Records(ctx)
	report := BuildReport(records, filter)
	if err != nil {
		s.logger.WarnContext(ctx, "record listing failed", "error", err)
		report.Warnings = append(report.Warnings, "não foi possível carregar os registros: "+err.Error())
	}
	return report
}

// Refresh discards cached reads so the next listing hits the backing store.
func (s *Service) Refresh() {
	if inv, ok := s.store.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
}
