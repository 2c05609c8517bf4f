package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/automatistasidl/id-coletivo/internal/attendance"
	"github.com/automatistasidl/id-coletivo/internal/platform/envconfig"
)

// Config encapsulates the runtime configuration for the attendance service.
type Config struct {
	Port      string `validate:"required,numeric"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	DataStore DataStore
	Timezone  string         `validate:"required"`
	Location  *time.Location `validate:"-"`

	Badge     BadgeConfig
	Catalog   CatalogConfig
	Cache     CacheConfig
	CSV       CSVConfig
	Sheets    SheetsConfig
	Firestore FirestoreConfig
	Session   SessionConfig
	Kafka     KafkaConfig
	Export    ExportConfig
}

// DataStore enumerates supported persistence backends.
type DataStore string

const (
	// DataStoreMemory keeps records in-memory (useful for local development/testing).
	DataStoreMemory DataStore = "memory"
	// DataStoreCSV keeps both tables as CSV files in DATA_DIR.
	DataStoreCSV DataStore = "csv"
	// DataStoreSheets keeps both tables as sheets of one Google spreadsheet.
	DataStoreSheets DataStore = "sheets"
	// DataStoreFirestore keeps both tables as Firestore collections.
	DataStoreFirestore DataStore = "firestore"
)

// BadgeConfig bounds the badge number length.
type BadgeConfig struct {
	MinLength int `validate:"min=1"`
	MaxLength int `validate:"gtefield=MinLength"`
}

// CatalogConfig names the tables and carries the seed lists.
type CatalogConfig struct {
	RecordsTable string `validate:"required"`
	SectorsTable string `validate:"required"`
	SeedFile     string
	Sectors      []string `validate:"min=1,dive,required"`
	Tiers        []string `validate:"min=1,dive,required"`
}

// CacheConfig holds the read cache TTLs. Zero disables caching.
type CacheConfig struct {
	RecordsTTL time.Duration `validate:"min=0"`
	CatalogTTL time.Duration `validate:"min=0"`
}

// CSVConfig tailors the CSV backend.
type CSVConfig struct {
	Dir   string
	Watch bool
}

// SheetsConfig tailors the Google Sheets backend.
type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsFile string
	CredentialsJSON []byte
	Endpoint        string
}

// FirestoreConfig tailors Firestore client behavior.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// SessionConfig configures the signed session cookie.
type SessionConfig struct {
	Secret       string
	TTL          time.Duration `validate:"gt=0"`
	SecureCookie bool
}

// KafkaConfig enables record events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ExportConfig enables CSV snapshots when Bucket is set.
type ExportConfig struct {
	Bucket string
	Prefix string
}

type seedFile struct {
	Sectors []string `yaml:"sectors"`
	Tiers   []string `yaml:"tiers"`
}

// Load reads environment variables (and a .env file when present) into Config with validation.
func Load() (Config, error) {
	if err := envconfig.LoadDotEnv(); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Port:      envconfig.Get("PORT", "8080"),
		LogLevel:  strings.ToLower(envconfig.Get("LOG_LEVEL", "info")),
		DataStore: DataStore(strings.ToLower(envconfig.Get("DATASTORE", string(DataStoreMemory)))),
		Timezone:  envconfig.Get("TIMEZONE", "America/Sao_Paulo"),
		Badge: BadgeConfig{
			MinLength: envconfig.GetInt("BADGE_MIN_LENGTH", 4),
			MaxLength: envconfig.GetInt("BADGE_MAX_LENGTH", 10),
		},
		Catalog: CatalogConfig{
			RecordsTable: envconfig.Get("RECORDS_SHEET", "Registros"),
			SectorsTable: envconfig.Get("SECTORS_SHEET", "Setores"),
			SeedFile:     envconfig.Get("CATALOG_SEED_FILE", ""),
			Sectors:      append([]string(nil), attendance.DefaultSectors...),
			Tiers:        append([]string(nil), attendance.DefaultTiers...),
		},
		Cache: CacheConfig{
			RecordsTTL: envconfig.GetDuration("RECORDS_CACHE_TTL", 30*time.Second),
			CatalogTTL: envconfig.GetDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		},
		CSV: CSVConfig{
			Dir:   envconfig.Get("DATA_DIR", "./data"),
			Watch: envconfig.GetBool("WATCH_FILES", false),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   envconfig.Get("SHEETS_SPREADSHEET_ID", ""),
			CredentialsFile: envconfig.Get("GOOGLE_CREDENTIALS_FILE", ""),
			CredentialsJSON: []byte(envconfig.Get("GOOGLE_CREDENTIALS_JSON", "")),
			Endpoint:        envconfig.Get("SHEETS_ENDPOINT", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    envconfig.Get("GCP_PROJECT_ID", ""),
			EmulatorHost: envconfig.Get("FIRESTORE_EMULATOR_HOST", ""),
		},
		Session: SessionConfig{
			Secret:       envconfig.Get("SESSION_SECRET", ""),
			TTL:          envconfig.GetDuration("SESSION_TTL", 12*time.Hour),
			SecureCookie: envconfig.GetBool("SESSION_SECURE_COOKIE", false),
		},
		Kafka: KafkaConfig{
			Brokers: envconfig.GetList("KAFKA_BROKERS", nil),
			Topic:   envconfig.Get("KAFKA_TOPIC", "attendance.records"),
		},
		Export: ExportConfig{
			Bucket: envconfig.Get("EXPORT_BUCKET", ""),
			Prefix: envconfig.Get("EXPORT_PREFIX", "exports"),
		},
	}

	if cfg.Catalog.SeedFile != "" {
		if err := applySeedFile(&cfg.Catalog); err != nil {
			return Config{}, err
		}
	}

	if cfg.DataStore == DataStoreSheets && len(cfg.Sheets.CredentialsJSON) == 0 && cfg.Sheets.CredentialsFile != "" {
		raw, err := os.ReadFile(cfg.Sheets.CredentialsFile)
		if err != nil {
			return Config{}, fmt.Errorf("read GOOGLE_CREDENTIALS_FILE: %w", err)
		}
		cfg.Sheets.CredentialsJSON = raw
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if err := envconfig.Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applySeedFile(catalog *CatalogConfig) error {
	raw, err := os.ReadFile(catalog.SeedFile)
	if err != nil {
		return fmt.Errorf("read CATALOG_SEED_FILE: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse CATALOG_SEED_FILE: %w", err)
	}
	if len(seed.Sectors) > 0 {
		catalog.Sectors = trimAll(seed.Sectors)
	}
	if len(seed.Tiers) > 0 {
		catalog.Tiers = trimAll(seed.Tiers)
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func validate(cfg Config) error {
	switch cfg.DataStore {
	case DataStoreMemory:
		// no-op
	case DataStoreCSV:
		if strings.TrimSpace(cfg.CSV.Dir) == "" {
			return fmt.Errorf("DATA_DIR is required when datastore=csv")
		}
	case DataStoreSheets:
		if cfg.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("SHEETS_SPREADSHEET_ID is required when datastore=sheets")
		}
		if len(cfg.Sheets.CredentialsJSON) == 0 {
			return fmt.Errorf("GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON is required when datastore=sheets")
		}
	case DataStoreFirestore:
		if cfg.Firestore.ProjectID == "" {
			return fmt.Errorf("gcp project id required when datastore=firestore")
		}
	default:
		return fmt.Errorf("unsupported datastore: %s", cfg.DataStore)
	}

	for _, name := range cfg.Catalog.Sectors {
		if name == attendance.SectorOther {
			return fmt.Errorf("catalog seed must not contain the %q sentinel", attendance.SectorOther)
		}
	}

	if cfg.CSV.Watch && cfg.DataStore != DataStoreCSV {
		return fmt.Errorf("WATCH_FILES only applies when datastore=csv")
	}

	return nil
}

// Layout returns the table layout for the configured catalog.
func (c Config) Layout() attendance.Layout {
	return attendance.Layout{
		RecordsTable:   c.Catalog.RecordsTable,
		SectorsTable:   c.Catalog.SectorsTable,
		DefaultSectors: append([]string(nil), c.Catalog.Sectors...),
	}
}

// Policy returns the submission rules for the configured badge bounds and tiers.
func (c Config) Policy() attendance.Policy {
	return attendance.Policy{
		BadgeMinLength: c.Badge.MinLength,
		BadgeMaxLength: c.Badge.MaxLength,
		Tiers:          append([]string(nil), c.Catalog.Tiers...),
	}
}
