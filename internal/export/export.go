// Package export writes CSV snapshots of the records table to object storage.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/automatistasidl/id-coletivo/internal/attendance"
)

// RecordSource supplies the records to export.
type RecordSource interface {
	Records(ctx context.Context) ([]attendance.Record, error)
}

// ObjectSink stores one object and returns its location.
type ObjectSink interface {
	Put(ctx context.Context, path, contentType string, data io.Reader) (string, error)
}

// Result describes a written snapshot.
type Result struct {
	Object    string    `json:"object"`
	Location  string    `json:"location"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// Service builds snapshots from a RecordSource and hands them to an ObjectSink.
type Service struct {
	source RecordSource
	sink   ObjectSink
	prefix string
	now    func() time.Time
	newID  func() string
}

// NewService wires an exporter. prefix is prepended to every object path.
func NewService(source RecordSource, sink ObjectSink, prefix string) *Service {
	if prefix == "" {
		prefix = "exports"
	}
	return &Service{
		source: source,
		sink:   sink,
		prefix: prefix,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Export snapshots the records matching filter, newest first. A read failure aborts the
// export instead of writing an empty file.
func (s *Service) Export(ctx context.Context, filter attendance.Filter) (Result, error) {
	if s.sink == nil {
		return Result{}, errors.New("no export sink configured")
	}
	records, err := s.source.Records(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load records: %w", err)
	}
	report := attendance.BuildReport(records, filter)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, report.Records); err != nil {
		return Result{}, err
	}

	now := s.now().UTC()
	object := fmt.Sprintf("%s/%s/registros-%s.csv", s.prefix, now.Format("2006/01/02"), s.newID())
	location, err := s.sink.Put(ctx, object, "text/csv; charset=utf-8", &buf)
	if err != nil {
		return Result{}, fmt.Errorf("upload %s: %w", object, err)
	}
	return Result{
		Object:    object,
		Location:  location,
		Rows:      len(report.Records),
		CreatedAt: now,
	}, nil
}

// WriteCSV renders records with the records table header.
func WriteCSV(w io.Writer, records []attendance.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(attendance.RecordHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write([]string{rec.BadgeID, rec.Sector, rec.Tier, rec.Timestamp, rec.LeaderName}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
