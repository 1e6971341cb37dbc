package sqlite

import (
	"database/sql"
	"time"

	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
)

// storeTx implements ports.StoreTx
type storeTx struct {
	tx *sql.Tx
}

// Ensure storeTx implements StoreTx
var _ ports.StoreTx = (*storeTx)(nil)

// InsertSnapshot adds a snapshot row and returns its id. Counts and volume
// are kept current by InsertNode and InsertEdge.
func (t *storeTx) InsertSnapshot(projectID int, at time.Time, raw []byte) (int64, error) {
	res, err := t.tx.Exec(`
		INSERT INTO snapshots (project_id, recorded_at, payload)
		VALUES (?, ?, ?)
	`, projectID, at.UnixMilli(), raw)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertNode adds a node of a snapshot
func (t *storeTx) InsertNode(snapshotID int64, n domain.Node, lastActivity string) error {
	var parent, activity sql.NullString
	if n.HasParent() {
		parent = sql.NullString{String: n.ParentKey(), Valid: true}
	}
	if lastActivity != "" {
		activity = sql.NullString{String: lastActivity, Valid: true}
	}

	_, err := t.tx.Exec(`
		INSERT OR REPLACE INTO snapshot_nodes
			(snapshot_id, node_id, node_type, name, parent_id,
			 status_ok, status_expected_error, status_unexpected_error, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snapshotID, n.ID.String(), n.Type.Code(), n.Name, parent,
		n.OK, n.ExpectedError, n.UnexpectedError, activity)
	if err != nil {
		return err
	}

	_, err = t.tx.Exec(`UPDATE snapshots SET node_count = node_count + 1 WHERE id = ?`, snapshotID)
	return err
}

// InsertEdge adds an edge of a snapshot
func (t *storeTx) InsertEdge(snapshotID int64, e domain.Edge) error {
	_, err := t.tx.Exec(`
		INSERT OR REPLACE INTO snapshot_edges
			(snapshot_id, from_node_id, to_node_id,
			 status_ok, status_expected_error, status_unexpected_error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snapshotID, e.FromNodeID.String(), e.ToNodeID.String(),
		e.OK, e.ExpectedError, e.UnexpectedError)
	if err != nil {
		return err
	}

	_, err = t.tx.Exec(`
		UPDATE snapshots SET edge_count = edge_count + 1, volume = volume + ?
		WHERE id = ?
	`, e.Volume(), snapshotID)
	return err
}

// DeleteBefore removes a project's snapshots recorded before the cutoff.
// Nodes and edges go with them through ON DELETE CASCADE.
func (t *storeTx) DeleteBefore(projectID int, before time.Time) (int64, error) {
	res, err := t.tx.Exec(`
		DELETE FROM snapshots WHERE project_id = ? AND recorded_at < ?
	`, projectID, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Commit commits the transaction
func (t *storeTx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction
func (t *storeTx) Rollback() error {
	return t.tx.Rollback()
}
