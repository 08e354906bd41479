package repo

import (
	"context"
	"database/sql"

	"clubrun/internal/domain"
)

func scanInstruction(scan func(dest ...any) error) (domain.PaymentInstruction, error) {
	var in domain.PaymentInstruction
	err := scan(&in.ID, &in.MissionID, &in.CuratorID, &in.Method, &in.Amount, &in.Fee,
		&in.Recipient, &in.Note, &in.Steps, &in.Status, &in.CreatedAt, &in.ExpiresAt,
		&in.CompletedAt, &in.TransactionDetails)
	if err == sql.ErrNoRows {
		return in, ErrNotFound
	}
	return in, err
}

const instructionColumns = `id,mission_id,curator_id,payment_method,amount,fee,recipient,COALESCE(note,''),COALESCE(steps,''),status,created_at,expires_at,completed_at,transaction_details`

func (r Repo) InsertPaymentInstruction(ctx context.Context, in domain.PaymentInstruction) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO payment_instructions(id,mission_id,curator_id,payment_method,amount,fee,recipient,note,steps,status,created_at,expires_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		in.ID, in.MissionID, in.CuratorID, in.Method, in.Amount, in.Fee,
		in.Recipient, nullable(in.Note), nullable(in.Steps), in.Status, in.CreatedAt, in.ExpiresAt)
	return err
}

func (r Repo) GetPaymentInstruction(ctx context.Context, id string) (domain.PaymentInstruction, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+instructionColumns+` FROM payment_instructions WHERE id=?`, id)
	return scanInstruction(row.Scan)
}

// CompletePaymentInstruction transitions a pending instruction to completed.
// ErrNotFound covers both unknown ids and instructions no longer pending.
func (r Repo) CompletePaymentInstruction(ctx context.Context, id, transactionDetails, now string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE payment_instructions SET status=?, completed_at=?, transaction_details=? WHERE id=? AND status=?`,
		domain.InstructionCompleted, now, transactionDetails, id, domain.InstructionPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpirePaymentInstructions marks pending instructions past their expiry and
// returns how many were swept.
func (r Repo) ExpirePaymentInstructions(ctx context.Context, now string) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE payment_instructions SET status=? WHERE status=? AND expires_at<=?`,
		domain.InstructionExpired, domain.InstructionPending, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r Repo) ListPaymentInstructions(ctx context.Context, missionID, status string) ([]domain.PaymentInstruction, error) {
	query := `SELECT ` + instructionColumns + ` FROM payment_instructions`
	var (
		conds []string
		args  []any
	)
	if missionID != "" {
		conds = append(conds, "mission_id=?")
		args = append(args, missionID)
	}
	if status != "" {
		conds = append(conds, "status=?")
		args = append(args, status)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PaymentInstruction
	for rows.Next() {
		in, err := scanInstruction(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, in)
	}
	return res, rows.Err()
}
