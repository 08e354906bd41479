package repo

import (
	"context"
	"database/sql"

	"clubrun/internal/domain"
)

func (r Repo) InsertRunner(ctx context.Context, runner domain.Runner) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO runners(id,display_name,wallet_address,created_at) VALUES (?,?,?,?)`,
		runner.ID, nullable(runner.DisplayName), runner.WalletAddr, runner.CreatedAt)
	return err
}

func (r Repo) GetRunner(ctx context.Context, id string) (domain.Runner, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,COALESCE(display_name,''),wallet_address,created_at FROM runners WHERE id=?`, id)
	var runner domain.Runner
	err := row.Scan(&runner.ID, &runner.DisplayName, &runner.WalletAddr, &runner.CreatedAt)
	if err == sql.ErrNoRows {
		return runner, ErrNotFound
	}
	return runner, err
}

// GetOracleCredentials returns the stored play-history tokens for a runner.
// ErrNotFound means the runner never linked an account.
func (r Repo) GetOracleCredentials(ctx context.Context, runnerID string) (domain.OracleCredentials, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT runner_id,access_token,refresh_token,expires_at,updated_at FROM oracle_credentials WHERE runner_id=?`, runnerID)
	var c domain.OracleCredentials
	err := row.Scan(&c.RunnerID, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// UpsertOracleCredentials stores refreshed tokens. A refresh that returns no
// new refresh token keeps the existing one; callers pass the merged value.
func (r Repo) UpsertOracleCredentials(ctx context.Context, c domain.OracleCredentials) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO oracle_credentials(runner_id,access_token,refresh_token,expires_at,updated_at)
VALUES (?,?,?,?,?)
ON CONFLICT(runner_id) DO UPDATE SET access_token=excluded.access_token, refresh_token=excluded.refresh_token, expires_at=excluded.expires_at, updated_at=excluded.updated_at`,
		c.RunnerID, c.AccessToken, c.RefreshToken, c.ExpiresAt, c.UpdatedAt)
	return err
}
