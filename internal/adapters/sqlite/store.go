package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"servicegraph/internal/application"
	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
)

const schemaVersion = "1"

// Store implements ports.SnapshotStore using SQLite
type Store struct {
	db     *sql.DB
	dbPath string
}

// Ensure Store implements SnapshotStore
var _ ports.SnapshotStore = (*Store)(nil)

// NewStore creates a new SQLite snapshot store
func NewStore() *Store {
	return &Store{}
}

// Open initializes the database at path, creating it if needed
func (s *Store) Open(path string) error {
	// Expand ~ in path
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	s.dbPath = path

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	s.db = db

	_, err = db.Exec(`
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;

		CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			recorded_at INTEGER NOT NULL,
			node_count INTEGER NOT NULL DEFAULT 0,
			edge_count INTEGER NOT NULL DEFAULT 0,
			volume INTEGER NOT NULL DEFAULT 0,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS snapshot_nodes (
			snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			node_id TEXT NOT NULL,
			node_type INTEGER NOT NULL,
			name TEXT NOT NULL,
			parent_id TEXT,
			status_ok INTEGER NOT NULL,
			status_expected_error INTEGER NOT NULL,
			status_unexpected_error INTEGER NOT NULL,
			last_activity TEXT,
			PRIMARY KEY (snapshot_id, node_id)
		);
		CREATE TABLE IF NOT EXISTS snapshot_edges (
			snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			from_node_id TEXT NOT NULL,
			to_node_id TEXT NOT NULL,
			status_ok INTEGER NOT NULL,
			status_expected_error INTEGER NOT NULL,
			status_unexpected_error INTEGER NOT NULL,
			PRIMARY KEY (snapshot_id, from_node_id, to_node_id)
		);
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_project ON snapshots(project_id, recorded_at);
		CREATE INDEX IF NOT EXISTS idx_edges_pair ON snapshot_edges(from_node_id, to_node_id);
	`)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to setup database: %w", err)
	}

	if err := s.checkSchema(); err != nil {
		db.Close()
		return err
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.dbPath
}

// checkSchema stamps a fresh database and rejects one written by another schema
func (s *Store) checkSchema() error {
	var version string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.Exec(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("unsupported schema version %s (want %s)", version, schemaVersion)
	}
	return nil
}

// Record stores a payload and its flattened nodes and edges in one transaction
func (s *Store) Record(ctx context.Context, projectID int, p *domain.Payload, at time.Time) (int64, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload: %w", err)
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	id, err := tx.InsertSnapshot(projectID, at, raw)
	if err != nil {
		return 0, err
	}

	activities := p.Activities()
	for _, n := range p.Graph.Nodes {
		if err := tx.InsertNode(id, n, activities[n.ID.String()].LastActivity); err != nil {
			return 0, err
		}
	}
	for _, e := range p.Graph.Edges {
		if err := tx.InsertEdge(id, e); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Prune deletes a project's snapshots recorded before the cutoff
func (s *Store) Prune(ctx context.Context, projectID int, before time.Time) (int64, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n, err := tx.DeleteBefore(projectID, before)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// List returns the most recent snapshots of a project, newest first
func (s *Store) List(ctx context.Context, projectID int, limit int) ([]domain.SnapshotInfo, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, recorded_at, node_count, edge_count, volume
		FROM snapshots WHERE project_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []domain.SnapshotInfo
	for rows.Next() {
		var info domain.SnapshotInfo
		var at int64
		if err := rows.Scan(&info.ID, &info.ProjectID, &at, &info.Nodes, &info.Edges, &info.Volume); err != nil {
			return nil, err
		}
		info.RecordedAt = time.UnixMilli(at).UTC()
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// ids returns a project's snapshot ids in recording order
func (s *Store) ids(ctx context.Context, projectID int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM snapshots WHERE project_id = ? ORDER BY recorded_at, id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Load returns the payload stored under id
func (s *Store) Load(ctx context.Context, id int64) (*domain.Payload, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %d: %w", id, application.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var p domain.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("snapshot %d is corrupt: %w", id, err)
	}
	return &p, nil
}

// Latest returns the most recent payload of a project
func (s *Store) Latest(ctx context.Context, projectID int) (*domain.Payload, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM snapshots WHERE project_id = ?
		ORDER BY recorded_at DESC, id DESC LIMIT 1
	`, projectID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %d has no snapshots: %w", projectID, application.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, id)
}

// EdgeHistory returns the counters of one edge across recorded snapshots, newest first
func (s *Store) EdgeHistory(ctx context.Context, projectID int, key domain.EdgeKey, limit int) ([]domain.EdgeSample, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.recorded_at, e.status_ok, e.status_expected_error, e.status_unexpected_error
		FROM snapshot_edges e
		JOIN snapshots s ON s.id = e.snapshot_id
		WHERE s.project_id = ? AND e.from_node_id = ? AND e.to_node_id = ?
		ORDER BY s.recorded_at DESC, s.id DESC
		LIMIT ?
	`, projectID, key.Source, key.Target, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []domain.EdgeSample
	for rows.Next() {
		var sample domain.EdgeSample
		var at int64
		if err := rows.Scan(&sample.SnapshotID, &at, &sample.OK, &sample.ExpectedError, &sample.UnexpectedError); err != nil {
			return nil, err
		}
		sample.RecordedAt = time.UnixMilli(at).UTC()
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// Histogram buckets recorded traffic matching q. Each bucket holds the
// largest filtered volume among the snapshots recorded in it.
func (s *Store) Histogram(ctx context.Context, q domain.Query, bucket time.Duration) (*domain.Histogram, error) {
	if bucket <= 0 {
		bucket = time.Minute
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.recorded_at, src.node_type, dst.node_type,
		       e.status_ok, e.status_expected_error, e.status_unexpected_error
		FROM snapshot_edges e
		JOIN snapshots s ON s.id = e.snapshot_id
		JOIN snapshot_nodes src ON src.snapshot_id = e.snapshot_id AND src.node_id = e.from_node_id
		JOIN snapshot_nodes dst ON dst.snapshot_id = e.snapshot_id AND dst.node_id = e.to_node_id
		WHERE s.project_id = ?
		ORDER BY s.recorded_at, s.id
	`, q.ProjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type slot struct {
		start  time.Time
		volume map[int64]int
	}
	var slots []*slot
	for rows.Next() {
		var id, at int64
		var fromCode, toCode int
		var e domain.Edge
		if err := rows.Scan(&id, &at, &fromCode, &toCode, &e.OK, &e.ExpectedError, &e.UnexpectedError); err != nil {
			return nil, err
		}
		recorded := time.UnixMilli(at).UTC()
		if !q.InWindow(recorded) {
			continue
		}
		from, _ := domain.NodeTypeFromCode(fromCode)
		to, _ := domain.NodeTypeFromCode(toCode)
		if !q.MatchesEdge(e, from, to) {
			continue
		}

		start := recorded.Truncate(bucket)
		if len(slots) == 0 || !slots[len(slots)-1].start.Equal(start) {
			slots = append(slots, &slot{start: start, volume: make(map[int64]int)})
		}
		slots[len(slots)-1].volume[id] += e.Volume()
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	h := &domain.Histogram{Buckets: make([]domain.Bucket, 0, len(slots))}
	for _, sl := range slots {
		n := 0
		for _, v := range sl.volume {
			n = max(n, v)
		}
		h.Buckets = append(h.Buckets, domain.Bucket{TS: sl.start.Format(time.RFC3339), N: n})
	}
	return h, nil
}

// BeginTx starts a new transaction
func (s *Store) BeginTx(ctx context.Context) (ports.StoreTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &storeTx{tx: tx}, nil
}
