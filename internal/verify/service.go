package verify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"clubrun/internal/domain"
	"clubrun/internal/repo"
)

// Service is the in-process surface the application calls: queue a mission
// now, arm a delayed verification, or poll status. It also owns the
// scheduler loop that promotes due durable schedules into queue tasks, so
// verifications armed before a restart still run.
type Service struct {
	Queue  *Queue
	Worker *Worker
	Repo   repo.Repo

	interval time.Duration
	sweep    func(context.Context) (int64, error)
	stop     chan struct{}
}

func NewService(worker *Worker, interval time.Duration) *Service {
	s := &Service{
		Queue:    NewQueue(worker),
		Worker:   worker,
		Repo:     worker.Repo,
		interval: interval,
		stop:     make(chan struct{}),
	}
	if worker.Router != nil {
		s.sweep = worker.Router.SweepExpired
	}
	return s
}

// QueueMissionForVerification enqueues an immediate verification attempt.
func (s *Service) QueueMissionForVerification(ctx context.Context, missionID, runnerID string, window domain.VerificationWindow) (domain.VerificationTask, error) {
	if _, err := s.Repo.GetMission(ctx, missionID); err != nil {
		return domain.VerificationTask{}, err
	}
	return s.Queue.Enqueue(missionID, runnerID, window)
}

// ScheduleMissionVerification arms a durable delayed enqueue at the window
// end, when the full play history for the window is available.
func (s *Service) ScheduleMissionVerification(ctx context.Context, missionID, runnerID, startTime, endTime string) (domain.ScheduledVerification, error) {
	if _, err := s.Repo.GetMission(ctx, missionID); err != nil {
		return domain.ScheduledVerification{}, err
	}
	start, err := time.Parse(time.RFC3339, startTime)
	if err != nil {
		return domain.ScheduledVerification{}, fmt.Errorf("invalid start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, endTime)
	if err != nil {
		return domain.ScheduledVerification{}, fmt.Errorf("invalid end time: %w", err)
	}
	if !end.After(start) {
		return domain.ScheduledVerification{}, fmt.Errorf("window end must be after start")
	}
	scheduled := domain.ScheduledVerification{
		ID:        uuid.New().String(),
		MissionID: missionID,
		RunnerID:  runnerID,
		Window: domain.VerificationWindow{
			StartTime: start.UTC().Format(time.RFC3339),
			EndTime:   end.UTC().Format(time.RFC3339),
		},
		EnqueueAt: end.UTC().Format(time.RFC3339),
		Status:    repo.ScheduleArmed,
		CreatedAt: s.Worker.now().UTC().Format(time.RFC3339),
	}
	if err := s.Repo.InsertScheduledVerification(ctx, scheduled); err != nil {
		return domain.ScheduledVerification{}, fmt.Errorf("insert schedule: %w", err)
	}
	return scheduled, nil
}

// VerificationStatus is the poll answer for a mission.
type VerificationStatus struct {
	MissionID     string                         `json:"mission_id"`
	MissionStatus string                         `json:"mission_status"`
	State         string                         `json:"state" enum:"queued,scheduled,completed,failed,idle"`
	ProofHash     *string                        `json:"proof_hash,omitempty"`
	FailureReason *string                        `json:"failure_reason,omitempty"`
	Task          *domain.VerificationTask       `json:"task,omitempty"`
	Scheduled     []domain.ScheduledVerification `json:"scheduled,omitempty"`
}

// GetVerificationStatus reports where a mission sits in the pipeline.
func (s *Service) GetVerificationStatus(ctx context.Context, missionID string) (VerificationStatus, error) {
	mission, err := s.Repo.GetMission(ctx, missionID)
	if err != nil {
		return VerificationStatus{}, err
	}
	status := VerificationStatus{
		MissionID:     mission.ID,
		MissionStatus: mission.Status,
		ProofHash:     mission.ProofHash,
		FailureReason: mission.FailureReason,
	}
	status.Scheduled, _ = s.Repo.ListScheduledVerifications(ctx, missionID)
	switch {
	case mission.Status == domain.MissionCompleted:
		status.State = "completed"
	case mission.Status == domain.MissionFailed:
		status.State = "failed"
	default:
		if task, queued := s.Queue.Status(missionID); queued {
			status.State = "queued"
			status.Task = &task
		} else if hasArmed(status.Scheduled) {
			status.State = "scheduled"
		} else {
			status.State = "idle"
		}
	}
	return status, nil
}

func hasArmed(scheduled []domain.ScheduledVerification) bool {
	for _, s := range scheduled {
		if s.Status == repo.ScheduleArmed {
			return true
		}
	}
	return false
}

// Start launches the scheduler loop. Each tick promotes due schedules,
// wakes the queue so elapsed retry gates are re-checked, and sweeps expired
// payment instructions.
func (s *Service) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			s.Tick(context.Background())
			select {
			case <-ticker.C:
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the scheduler loop and the queue.
func (s *Service) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.Queue.Stop()
}

// Tick runs one scheduler pass. Exposed so tests and the CLI can drive the
// loop deterministically.
func (s *Service) Tick(ctx context.Context) {
	now := s.Worker.now().UTC().Format(time.RFC3339)
	due, err := s.Repo.DueScheduledVerifications(ctx, now)
	if err != nil {
		log.Printf("scheduler: list due verifications: %v", err)
	}
	for _, scheduled := range due {
		if err := s.Repo.MarkScheduleEnqueued(ctx, scheduled.ID); err != nil {
			// Another pass claimed it.
			continue
		}
		if _, err := s.Queue.Enqueue(scheduled.MissionID, scheduled.RunnerID, scheduled.Window); err != nil {
			log.Printf("scheduler: enqueue mission %s: %v", scheduled.MissionID, err)
		}
	}
	s.Queue.Wake()
	if s.sweep != nil {
		if n, err := s.sweep(ctx); err != nil {
			log.Printf("scheduler: sweep expired instructions: %v", err)
		} else if n > 0 {
			log.Printf("scheduler: expired %d payment instructions", n)
		}
	}
}
