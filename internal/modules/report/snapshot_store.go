package report

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/riskd/internal/domain"
)

// SnapshotStore persists msgpack-serialized report snapshots.
type SnapshotStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotStore creates a snapshot store.
func NewSnapshotStore(db *sql.DB, log zerolog.Logger) *SnapshotStore {
	return &SnapshotStore{
		db:  db,
		log: log.With().Str("repo", "report_snapshots").Logger(),
	}
}

// Init creates the schema if it does not exist.
func (s *SnapshotStore) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS report_snapshots (
		report_id TEXT PRIMARY KEY,
		generated_at TEXT NOT NULL,
		rating TEXT NOT NULL,
		payload BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_report_snapshots_generated_at
		ON report_snapshots(generated_at);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create snapshot schema: %w", err)
	}
	return nil
}

// Save serializes a report with msgpack and stores it.
func (s *SnapshotStore) Save(report *RiskReport) error {
	payload, err := msgpack.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report %s: %w", report.ID, err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO report_snapshots (report_id, generated_at, rating, payload) VALUES (?, ?, ?, ?)`,
		report.ID, report.GeneratedAt.UTC().Format(time.RFC3339Nano), string(report.Rating), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to store report %s: %w", report.ID, err)
	}

	s.log.Debug().
		Str("report_id", report.ID).
		Int("bytes", len(payload)).
		Msg("Stored report snapshot")

	return nil
}

// Latest returns the most recently generated report snapshot.
func (s *SnapshotStore) Latest() (*RiskReport, error) {
	var payload []byte
	err := s.db.QueryRow(
		`SELECT payload FROM report_snapshots ORDER BY generated_at DESC LIMIT 1`,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no report snapshots: %w", domain.ErrEmptySeries)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	var report RiskReport
	if err := msgpack.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &report, nil
}

// Get returns one snapshot by report ID.
func (s *SnapshotStore) Get(reportID string) (*RiskReport, error) {
	var payload []byte
	err := s.db.QueryRow(
		`SELECT payload FROM report_snapshots WHERE report_id = ?`, reportID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %s: %w", reportID, domain.ErrEmptySeries)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot %s: %w", reportID, err)
	}

	var report RiskReport
	if err := msgpack.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", reportID, err)
	}
	return &report, nil
}

// Prune deletes snapshots older than the retention window, returning
// the number removed.
func (s *SnapshotStore) Prune(olderThan time.Time) (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM report_snapshots WHERE generated_at < ?`,
		olderThan.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
