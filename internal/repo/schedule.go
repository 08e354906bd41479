package repo

import (
	"context"
	"database/sql"

	"clubrun/internal/domain"
)

// Scheduled verification statuses.
const (
	ScheduleArmed    = "armed"
	ScheduleEnqueued = "enqueued"
	ScheduleCanceled = "canceled"
)

func scanScheduled(scan func(dest ...any) error) (domain.ScheduledVerification, error) {
	var s domain.ScheduledVerification
	err := scan(&s.ID, &s.MissionID, &s.RunnerID, &s.Window.StartTime, &s.Window.EndTime,
		&s.EnqueueAt, &s.Status, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) InsertScheduledVerification(ctx context.Context, s domain.ScheduledVerification) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO verification_schedule(id,mission_id,runner_id,window_start,window_end,enqueue_at,status,created_at)
VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.MissionID, s.RunnerID, s.Window.StartTime, s.Window.EndTime, s.EnqueueAt, s.Status, s.CreatedAt)
	return err
}

// DueScheduledVerifications returns armed rows whose enqueue time has passed,
// oldest first.
func (r Repo) DueScheduledVerifications(ctx context.Context, now string) ([]domain.ScheduledVerification, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,mission_id,runner_id,window_start,window_end,enqueue_at,status,created_at
FROM verification_schedule WHERE status=? AND enqueue_at<=? ORDER BY enqueue_at ASC`,
		ScheduleArmed, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ScheduledVerification
	for rows.Next() {
		s, err := scanScheduled(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// MarkScheduleEnqueued flips an armed row to enqueued so a restarted process
// does not enqueue it twice.
func (r Repo) MarkScheduleEnqueued(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE verification_schedule SET status=? WHERE id=? AND status=?`,
		ScheduleEnqueued, id, ScheduleArmed)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetScheduledVerification(ctx context.Context, id string) (domain.ScheduledVerification, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id,mission_id,runner_id,window_start,window_end,enqueue_at,status,created_at FROM verification_schedule WHERE id=?`, id)
	return scanScheduled(row.Scan)
}

func (r Repo) ListScheduledVerifications(ctx context.Context, missionID string) ([]domain.ScheduledVerification, error) {
	query := `SELECT id,mission_id,runner_id,window_start,window_end,enqueue_at,status,created_at FROM verification_schedule`
	var args []any
	if missionID != "" {
		query += ` WHERE mission_id=?`
		args = append(args, missionID)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ScheduledVerification
	for rows.Next() {
		s, err := scanScheduled(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
