package attendance

import (
	"context"
	"encoding/base64"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore keeps records and sectors in two collections. Sector documents are keyed by
// name, so AppendSector is an atomic insert-if-absent and concurrent instances cannot
// duplicate a sector.
type FirestoreStore struct {
	client *firestore.Client
	layout Layout
	clock  Clock
}

// NewFirestoreStore instantiates a Firestore-backed store.
func NewFirestoreStore(client *firestore.Client, layout Layout, clock Clock) *FirestoreStore {
	if clock == nil {
		clock = NewSystemClock(nil)
	}
	return &FirestoreStore{client: client, layout: layout, clock: clock}
}

func (s *FirestoreStore) records() *firestore.CollectionRef {
	return s.client.Collection(s.layout.RecordsTable)
}

func (s *FirestoreStore) sectors() *firestore.CollectionRef {
	return s.client.Collection(s.layout.SectorsTable)
}

// EnsureSchema seeds the sector collection when it is empty. Collections themselves are
// created implicitly on first write.
func (s *FirestoreStore) EnsureSchema(ctx context.Context) error {
	iter := s.sectors().Limit(1).Documents(ctx)
	defer iter.Stop()
	_, err := iter.Next()
	if err == nil {
		return nil
	}
	if err != iterator.Done {
		return connectionError("ensure_schema", err, firestoreHint(err))
	}

	base := s.clock.Now()
	for i, name := range s.layout.DefaultSectors {
		_, err := s.sectors().Doc(sectorDocID(name)).Create(ctx, map[string]any{
			"name":       name,
			"created_at": base.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return connectionError("ensure_schema", err, firestoreHint(err))
		}
	}
	return nil
}

// Append adds one record document.
func (s *FirestoreStore) Append(ctx context.Context, record Record) (Record, error) {
	now := s.clock.Now()
	record.Timestamp = FormatTimestamp(now)
	_, _, err := s.records().Add(ctx, map[string]any{
		"badge_id":    record.BadgeID,
		"sector":      record.Sector,
		"tier":        record.Tier,
		"timestamp":   record.Timestamp,
		"leader_name": record.LeaderName,
		"created_at":  now,
	})
	if err != nil {
		return Record{}, writeError("append_record", err)
	}
	return record, nil
}

// LoadAll returns every record in insertion order.
func (s *FirestoreStore) LoadAll(ctx context.Context) ([]Record, error) {
	iter := s.records().OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var records []Record
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, readError("load_records", err)
		}
		data := doc.Data()
		records = append(records, Record{
			BadgeID:    stringField(data, "badge_id"),
			Sector:     stringField(data, "sector"),
			Tier:       stringField(data, "tier"),
			Timestamp:  stringField(data, "timestamp"),
			LeaderName: stringField(data, "leader_name"),
		})
	}
	return records, nil
}

// Sectors returns the catalog in insertion order.
func (s *FirestoreStore) Sectors(ctx context.Context) ([]string, error) {
	iter := s.sectors().OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var names []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, readError("load_sectors", err)
		}
		if name := stringField(doc.Data(), "name"); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// AppendSector creates the sector document, reporting SectorExists when it is already there.
func (s *FirestoreStore) AppendSector(ctx context.Context, name string) (AppendOutcome, error) {
	name, err := normalizeSectorName(name)
	if err != nil {
		return 0, err
	}
	_, err = s.sectors().Doc(sectorDocID(name)).Create(ctx, map[string]any{
		"name":       name,
		"created_at": s.clock.Now(),
	})
	if status.Code(err) == codes.AlreadyExists {
		return SectorExists, nil
	}
	if err != nil {
		return 0, writeError("append_sector", err)
	}
	return SectorAdded, nil
}

// sectorDocID derives a valid, case-sensitive document id from a sector name.
func sectorDocID(name string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(name))
}

func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func firestoreHint(err error) string {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return "grant the runtime service account the Cloud Datastore User role"
	case codes.NotFound:
		return "create the Firestore database or check GCP_PROJECT_ID"
	default:
		return "check GCP_PROJECT_ID and application default credentials"
	}
}
