package verify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clubrun/internal/archiver"
	"clubrun/internal/config"
	"clubrun/internal/domain"
	"clubrun/internal/events"
	"clubrun/internal/notify"
	"clubrun/internal/oracle"
	"clubrun/internal/payments"
	"clubrun/internal/repo"
)

// FailureTrackNotFound is the terminal reason recorded when the window
// closes without a matching play.
const FailureTrackNotFound = "Track not found in play history"

const verificationMethod = "play-history-match"

// Outcome of one verification attempt.
type Outcome int

const (
	// OutcomeCompleted: mission completed, task discarded.
	OutcomeCompleted Outcome = iota
	// OutcomeDeferred: no match yet, window still open; re-check later.
	OutcomeDeferred
	// OutcomeFailed: mission failed terminally, task discarded.
	OutcomeFailed
	// OutcomeRetry: attempt errored transiently; task re-enqueued with
	// backoff.
	OutcomeRetry
	// OutcomeDropped: mission already terminal, task silently discarded.
	OutcomeDropped
)

// Worker runs the verification attempt pipeline. One attempt at a time; the
// queue enforces that.
type Worker struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Oracle   oracle.Client
	Archiver archiver.Archiver
	Router   *payments.Router
	Notifier notify.Notifier
	Config   config.VerificationConfig
	Now      func() time.Time
	Log      func(format string, args ...any)
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Worker) logf(format string, args ...any) {
	if w.Log != nil {
		w.Log(format, args...)
	}
}

// Process runs one attempt for the task and resolves the error-retry policy.
// It never returns an error: every failure path ends in a mission state
// transition, a mutated task, or both.
func (w *Worker) Process(ctx context.Context, task *domain.VerificationTask) Outcome {
	outcome, err := w.attempt(ctx, task)
	if err == nil {
		return outcome
	}
	if IsFatal(err) {
		w.logf("verify: mission %s fatal: %v", task.MissionID, err)
		w.failMission(ctx, task, err.Error())
		return OutcomeFailed
	}
	task.Attempts++
	if task.Attempts >= task.MaxAttempts {
		w.logf("verify: mission %s retries exhausted: %v", task.MissionID, err)
		w.failMission(ctx, task, err.Error())
		return OutcomeFailed
	}
	backoff := time.Duration(task.Attempts) * w.Config.RetryBackoff.Std()
	retryAt := w.now().UTC().Add(backoff).Format(time.RFC3339)
	task.RetryAt = &retryAt
	w.logf("verify: mission %s attempt %d/%d failed, retrying at %s: %v",
		task.MissionID, task.Attempts, task.MaxAttempts, retryAt, err)
	_ = w.Events.Append(ctx, nil, "verification.retry", "mission", task.MissionID, "system", events.EventPayload{
		"attempts": task.Attempts,
		"retry_at": retryAt,
		"error":    err.Error(),
	})
	return OutcomeRetry
}

// attempt is the §4.1 pipeline: load mission and credentials, refresh the
// token when close to expiry, parse the track requirement, ask the oracle,
// and branch on the answer.
func (w *Worker) attempt(ctx context.Context, task *domain.VerificationTask) (Outcome, error) {
	mission, err := w.Repo.GetMission(ctx, task.MissionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, fatal(fmt.Errorf("mission %s not found", task.MissionID))
		}
		return 0, fmt.Errorf("load mission: %w", err)
	}
	if domain.IsTerminalMissionStatus(mission.Status) {
		w.logf("verify: mission %s already %s, dropping task", mission.ID, mission.Status)
		return OutcomeDropped, nil
	}

	creds, err := w.Repo.GetOracleCredentials(ctx, task.RunnerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, fatal(fmt.Errorf("runner %s has no linked play-history account", task.RunnerID))
		}
		return 0, fmt.Errorf("load oracle credentials: %w", err)
	}
	accessToken, err := w.freshAccessToken(ctx, creds)
	if err != nil {
		return 0, err
	}

	track, err := trackRequirement(mission.RequirementsJSON)
	if err != nil {
		return 0, fatal(fmt.Errorf("mission %s requirements: %w", mission.ID, err))
	}

	start, err := time.Parse(time.RFC3339, task.Window.StartTime)
	if err != nil {
		return 0, fatal(fmt.Errorf("verification window start: %w", err))
	}
	end, err := time.Parse(time.RFC3339, task.Window.EndTime)
	if err != nil {
		return 0, fatal(fmt.Errorf("verification window end: %w", err))
	}

	octx, cancel := context.WithTimeout(ctx, w.Config.OracleTimeout.Std())
	result, err := w.Oracle.VerifyTrackPlay(octx, accessToken, track, start, end)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("oracle verify: %w", err)
	}

	now := w.now().UTC()
	switch {
	case result.TrackFound && result.Confidence >= w.Config.ConfidenceThreshold:
		if err := w.complete(ctx, mission, task, track, result); err != nil {
			return 0, err
		}
		return OutcomeCompleted, nil
	case now.Before(end):
		retryAt := now.Add(w.Config.DeferDelay.Std()).Format(time.RFC3339)
		task.RetryAt = &retryAt
		_ = w.Events.Append(ctx, nil, "verification.deferred", "mission", mission.ID, "system", events.EventPayload{
			"retry_at":   retryAt,
			"confidence": result.Confidence,
		})
		return OutcomeDeferred, nil
	default:
		w.failMission(ctx, task, FailureTrackNotFound)
		return OutcomeFailed, nil
	}
}

// freshAccessToken refreshes the stored credential when it is expired or
// expires within the configured margin, persisting the new tokens first.
func (w *Worker) freshAccessToken(ctx context.Context, creds domain.OracleCredentials) (string, error) {
	expiresAt, err := time.Parse(time.RFC3339, creds.ExpiresAt)
	if err != nil {
		return "", fatal(fmt.Errorf("stored credential expiry: %w", err))
	}
	if w.now().UTC().Add(w.Config.TokenRefreshMargin.Std()).Before(expiresAt) {
		return creds.AccessToken, nil
	}
	tokens, err := w.Oracle.RefreshToken(ctx, creds.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh oracle token: %w", err)
	}
	refreshed := domain.OracleCredentials{
		RunnerID:     creds.RunnerID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt.UTC().Format(time.RFC3339),
		UpdatedAt:    w.now().UTC().Format(time.RFC3339),
	}
	if tokens.RefreshToken != "" {
		refreshed.RefreshToken = tokens.RefreshToken
	}
	if err := w.Repo.UpsertOracleCredentials(ctx, refreshed); err != nil {
		return "", fmt.Errorf("persist refreshed credentials: %w", err)
	}
	return refreshed.AccessToken, nil
}

// complete archives the proof, transitions the mission, dispatches payment,
// and notifies the curator, in that order.
func (w *Worker) complete(ctx context.Context, mission domain.Mission, task *domain.VerificationTask, track domain.TrackRequirement, result domain.VerificationResult) error {
	nowStr := w.now().UTC().Format(time.RFC3339)
	proof := domain.ProofDocument{
		MissionID:  mission.ID,
		RunnerID:   task.RunnerID,
		VerifiedAt: nowStr,
		Track:      track,
		Result:     result,
		Method:     verificationMethod,
	}
	contentID, err := w.Archiver.Upload(ctx, proof)
	if err != nil {
		return fmt.Errorf("archive proof: %w", err)
	}
	proof.ContentID = contentID

	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := w.Repo.CompleteMission(ctx, tx, mission.ID, contentID, nowStr); err != nil {
		if errors.Is(err, repo.ErrTerminalStatus) {
			w.logf("verify: mission %s turned terminal mid-attempt, skipping payment", mission.ID)
			return nil
		}
		return fmt.Errorf("complete mission: %w", err)
	}
	err = w.Events.Append(ctx, tx, "mission.completed", "mission", mission.ID, "system", events.EventPayload{
		"proof_hash": contentID,
		"confidence": result.Confidence,
	})
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	recipient := task.RunnerID
	if mission.RunnerID != nil && *mission.RunnerID != "" {
		recipient = *mission.RunnerID
	}
	if _, err := w.Router.ProcessPayment(ctx, mission.PaymentMethod, mission.Budget, recipient, mission.ID, mission.CuratorID); err != nil {
		// The mission is already terminal; retrying the whole attempt
		// would verify and pay twice. Record the dispatch failure and
		// let the curator resolve it.
		w.logf("verify: mission %s payment dispatch failed: %v", mission.ID, err)
		_ = w.Events.Append(ctx, nil, "payment.dispatch.failed", "mission", mission.ID, "system", events.EventPayload{
			"method": mission.PaymentMethod,
			"error":  err.Error(),
		})
	}
	w.Notifier.Notify(ctx, notify.AudienceCurator, mission.CuratorID, "mission.completed", map[string]any{
		"mission_id": mission.ID,
		"proof_hash": contentID,
		"confidence": result.Confidence,
	})
	return nil
}

// failMission transitions the mission to failed and notifies the runner.
// A mission that is already terminal is left untouched.
func (w *Worker) failMission(ctx context.Context, task *domain.VerificationTask, reason string) {
	nowStr := w.now().UTC().Format(time.RFC3339)
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		w.logf("verify: mission %s fail tx: %v", task.MissionID, err)
		return
	}
	defer tx.Rollback()
	if err := w.Repo.FailMission(ctx, tx, task.MissionID, reason, nowStr); err != nil {
		if !errors.Is(err, repo.ErrTerminalStatus) && !errors.Is(err, repo.ErrNotFound) {
			w.logf("verify: mission %s fail update: %v", task.MissionID, err)
		}
		return
	}
	err = w.Events.Append(ctx, tx, "mission.failed", "mission", task.MissionID, "system", events.EventPayload{
		"reason":   reason,
		"attempts": task.Attempts,
	})
	if err != nil {
		w.logf("verify: mission %s fail event: %v", task.MissionID, err)
		return
	}
	if err := tx.Commit(); err != nil {
		w.logf("verify: mission %s fail commit: %v", task.MissionID, err)
		return
	}
	w.Notifier.Notify(ctx, notify.AudienceRunner, task.RunnerID, "mission.failed", map[string]any{
		"mission_id": task.MissionID,
		"reason":     reason,
	})
}

// trackRequirement extracts the track spec from a mission's serialized
// requirements. The track lives under the "track" key; a bare requirement
// object is accepted for older missions.
func trackRequirement(requirementsJSON string) (domain.TrackRequirement, error) {
	if requirementsJSON == "" {
		return domain.TrackRequirement{}, errors.New("no requirements set")
	}
	var wrapper struct {
		Track *domain.TrackRequirement `json:"track"`
	}
	if err := json.Unmarshal([]byte(requirementsJSON), &wrapper); err != nil {
		return domain.TrackRequirement{}, fmt.Errorf("unparseable requirements: %w", err)
	}
	if wrapper.Track != nil {
		if wrapper.Track.Title == "" {
			return domain.TrackRequirement{}, errors.New("track requirement missing title")
		}
		return *wrapper.Track, nil
	}
	var track domain.TrackRequirement
	if err := json.Unmarshal([]byte(requirementsJSON), &track); err != nil {
		return domain.TrackRequirement{}, fmt.Errorf("unparseable requirements: %w", err)
	}
	if track.Title == "" {
		return domain.TrackRequirement{}, errors.New("no track requirement in mission")
	}
	return track, nil
}
