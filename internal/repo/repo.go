package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"clubrun/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrTerminalStatus is returned when a status update targets a mission that
// already reached completed or failed.
var ErrTerminalStatus = errors.New("mission already in terminal status")

const missionColumns = `id,curator_id,runner_id,venue_id,title,COALESCE(requirements_json,''),budget,payment_method,status,proof_hash,failure_reason,created_at,updated_at,completed_at,failed_at`

func scanMission(scan func(dest ...any) error) (domain.Mission, error) {
	var m domain.Mission
	err := scan(&m.ID, &m.CuratorID, &m.RunnerID, &m.VenueID, &m.Title, &m.RequirementsJSON,
		&m.Budget, &m.PaymentMethod, &m.Status, &m.ProofHash, &m.FailureReason,
		&m.CreatedAt, &m.UpdatedAt, &m.CompletedAt, &m.FailedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) InsertMission(ctx context.Context, tx *sql.Tx, m domain.Mission) error {
	exec := r.execer(ctx, tx)
	_, err := exec(`INSERT INTO missions(id,curator_id,runner_id,venue_id,title,requirements_json,budget,payment_method,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.CuratorID, m.RunnerID, m.VenueID, m.Title, nullable(m.RequirementsJSON),
		m.Budget, m.PaymentMethod, m.Status, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) GetMission(ctx context.Context, id string) (domain.Mission, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE id=?`, id)
	return scanMission(row.Scan)
}

func (r Repo) ListMissions(ctx context.Context, status string) ([]domain.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Mission
	for rows.Next() {
		m, err := scanMission(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// AssignRunner sets the runner and moves a pending mission to in_progress.
func (r Repo) AssignRunner(ctx context.Context, missionID, runnerID, now string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE missions SET runner_id=?, status=?, updated_at=? WHERE id=? AND status=?`,
		runnerID, domain.MissionInProgress, now, missionID, domain.MissionPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteMission moves a mission into the completed terminal state. The
// WHERE clause refuses to touch missions already completed or failed, which
// is what keeps terminal states one-way even under re-enqueue.
func (r Repo) CompleteMission(ctx context.Context, tx *sql.Tx, missionID, proofHash, now string) error {
	exec := r.execer(ctx, tx)
	res, err := exec(`UPDATE missions SET status=?, proof_hash=?, completed_at=?, updated_at=?
WHERE id=? AND status NOT IN (?,?)`,
		domain.MissionCompleted, proofHash, now, now,
		missionID, domain.MissionCompleted, domain.MissionFailed)
	if err != nil {
		return err
	}
	return r.checkTransitioned(ctx, tx, res, missionID)
}

// FailMission moves a mission into the failed terminal state with a reason.
func (r Repo) FailMission(ctx context.Context, tx *sql.Tx, missionID, reason, now string) error {
	exec := r.execer(ctx, tx)
	res, err := exec(`UPDATE missions SET status=?, failure_reason=?, failed_at=?, updated_at=?
WHERE id=? AND status NOT IN (?,?)`,
		domain.MissionFailed, reason, now, now,
		missionID, domain.MissionCompleted, domain.MissionFailed)
	if err != nil {
		return err
	}
	return r.checkTransitioned(ctx, tx, res, missionID)
}

func (r Repo) checkTransitioned(ctx context.Context, tx *sql.Tx, res sql.Result, missionID string) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	row := func(query string, args ...any) *sql.Row {
		if tx != nil {
			return tx.QueryRowContext(ctx, query, args...)
		}
		return r.DB.QueryRowContext(ctx, query, args...)
	}
	var status string
	err := row(`SELECT status FROM missions WHERE id=?`, missionID).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if domain.IsTerminalMissionStatus(status) {
		return fmt.Errorf("%w: %s is %s", ErrTerminalStatus, missionID, status)
	}
	return fmt.Errorf("mission %s status not updated", missionID)
}

func (r Repo) execer(ctx context.Context, tx *sql.Tx) func(string, ...any) (sql.Result, error) {
	return func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return r.DB.ExecContext(ctx, query, args...)
	}
}

// ListEvents returns events newest-first, optionally filtered by entity.
func (r Repo) ListEvents(ctx context.Context, limit int, entityKind, entityID string) ([]domain.Event, error) {
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	var (
		conds []string
		args  []any
	)
	if entityKind != "" {
		conds = append(conds, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		conds = append(conds, "entity_id=?")
		args = append(args, entityID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns up to limit events with id greater than cursor, oldest
// first. Used by the webhook forwarder.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`,
		cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the highest event id, or 0 when the log is empty.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM events`).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
