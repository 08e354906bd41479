// Package payments dispatches mission payouts to the correct settlement
// path: an on-chain transfer that was already escrowed, or a manual fiat
// channel settled out-of-band by the curator.
package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clubrun/internal/config"
	"clubrun/internal/domain"
	"clubrun/internal/events"
	"clubrun/internal/notify"
	"clubrun/internal/repo"
)

// Payment methods. The on-chain pair is assumed escrowed by contract before
// the router is ever called; the rest are manual fiat channels.
const (
	MethodMatic   = "matic"
	MethodUSDC    = "usdc"
	MethodPayPal  = "paypal"
	MethodCashApp = "cashapp"
	MethodZelle   = "zelle"
	MethodVenmo   = "venmo"
)

// ErrUnsupportedMethod is a fatal input error, never retried.
var ErrUnsupportedMethod = errors.New("unsupported payment method")

// Router routes payments and owns the instruction records.
type Router struct {
	Repo     repo.Repo
	Events   events.Writer
	Notifier notify.Notifier
	Config   config.PaymentsConfig
	Now      func() time.Time
}

func NewRouter(db *sql.DB, cfg config.PaymentsConfig, notifier notify.Notifier) *Router {
	return &Router{
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{DB: db},
		Notifier: notifier,
		Config:   cfg,
		Now:      time.Now,
	}
}

func (r *Router) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// IsOnChain reports whether method settles via the escrow contract.
func IsOnChain(method string) bool {
	return method == MethodMatic || method == MethodUSDC
}

// Supported reports whether the router can settle via method, either
// on-chain or through a configured fiat channel.
func (r *Router) Supported(method string) bool {
	if IsOnChain(method) {
		return true
	}
	_, ok := r.Config.Channels[method]
	return ok
}

// Fees returns the fee for a method and amount. On-chain methods carry a
// flat gas estimate regardless of amount; fiat channels use their configured
// percent-plus-flat policy.
func (r *Router) Fees(method string, amount float64) (float64, error) {
	if IsOnChain(method) {
		return r.Config.OnChainFee, nil
	}
	policy, ok := r.Config.Channels[method]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	return amount*policy.Percent + policy.Flat, nil
}

// ProcessPayment dispatches a mission payout. On-chain methods return an
// already-completed transaction record; manual channels create a pending
// instruction with a 24h expiry and nudge the curator to settle it.
func (r *Router) ProcessPayment(ctx context.Context, method string, amount float64, recipient, missionID, curatorID string) (domain.PaymentResult, error) {
	if !r.Supported(method) {
		return domain.PaymentResult{}, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	fee, err := r.Fees(method, amount)
	if err != nil {
		return domain.PaymentResult{}, err
	}
	if IsOnChain(method) {
		result := domain.PaymentResult{
			TransactionID: uuid.New().String(),
			Method:        method,
			Amount:        amount,
			Fee:           fee,
			Status:        domain.InstructionCompleted,
		}
		err := r.Events.Append(ctx, nil, "payment.settled", "payment", result.TransactionID, "system", events.EventPayload{
			"mission_id": missionID,
			"method":     method,
			"amount":     amount,
			"fee":        fee,
		})
		if err != nil {
			return domain.PaymentResult{}, err
		}
		return result, nil
	}

	now := r.now().UTC()
	instruction := domain.PaymentInstruction{
		ID:        uuid.New().String(),
		MissionID: missionID,
		CuratorID: curatorID,
		Method:    method,
		Amount:    amount,
		Fee:       fee,
		Recipient: recipient,
		Note:      fmt.Sprintf("Club Run mission %s payout", missionID),
		Steps:     renderSteps(method, amount, recipient, missionID),
		Status:    domain.InstructionPending,
		CreatedAt: now.Format(time.RFC3339),
		ExpiresAt: now.Add(r.Config.InstructionTTL.Std()).Format(time.RFC3339),
	}
	if err := r.Repo.InsertPaymentInstruction(ctx, instruction); err != nil {
		return domain.PaymentResult{}, fmt.Errorf("insert payment instruction: %w", err)
	}
	err = r.Events.Append(ctx, nil, "payment.instruction.created", "payment", instruction.ID, "system", events.EventPayload{
		"mission_id": missionID,
		"method":     method,
		"amount":     amount,
		"fee":        fee,
		"expires_at": instruction.ExpiresAt,
	})
	if err != nil {
		return domain.PaymentResult{}, err
	}
	r.Notifier.Notify(ctx, notify.AudienceCurator, curatorID, "payment.due", map[string]any{
		"mission_id":     missionID,
		"instruction_id": instruction.ID,
		"method":         method,
		"amount":         amount,
		"recipient":      recipient,
	})
	return domain.PaymentResult{
		TransactionID: instruction.ID,
		Method:        method,
		Amount:        amount,
		Fee:           fee,
		Status:        domain.InstructionPending,
		Instruction:   &instruction,
	}, nil
}

// MarkCompleted settles a pending instruction. Unknown or already-settled
// ids return repo.ErrNotFound rather than silently no-opping.
func (r *Router) MarkCompleted(ctx context.Context, instructionID, transactionDetails string) (domain.PaymentInstruction, error) {
	instruction, err := r.Repo.GetPaymentInstruction(ctx, instructionID)
	if err != nil {
		return domain.PaymentInstruction{}, fmt.Errorf("payment instruction %s: %w", instructionID, err)
	}
	now := r.now().UTC().Format(time.RFC3339)
	if err := r.Repo.CompletePaymentInstruction(ctx, instructionID, transactionDetails, now); err != nil {
		return domain.PaymentInstruction{}, fmt.Errorf("complete payment instruction %s: %w", instructionID, err)
	}
	instruction.Status = domain.InstructionCompleted
	instruction.CompletedAt = &now
	instruction.TransactionDetails = &transactionDetails
	err = r.Events.Append(ctx, nil, "payment.completed", "payment", instructionID, "system", events.EventPayload{
		"mission_id": instruction.MissionID,
		"method":     instruction.Method,
		"amount":     instruction.Amount,
	})
	if err != nil {
		return domain.PaymentInstruction{}, err
	}
	r.Notifier.Notify(ctx, notify.AudienceRunner, instruction.Recipient, "payment.received", map[string]any{
		"mission_id":     instruction.MissionID,
		"instruction_id": instructionID,
		"method":         instruction.Method,
		"amount":         instruction.Amount,
	})
	return instruction, nil
}

// Status returns the instruction status, or repo.ErrNotFound for unknown ids.
func (r *Router) Status(ctx context.Context, instructionID string) (string, error) {
	instruction, err := r.Repo.GetPaymentInstruction(ctx, instructionID)
	if err != nil {
		return "", err
	}
	return instruction.Status, nil
}

// SweepExpired marks pending instructions past their expiry. Called on the
// scheduler tick.
func (r *Router) SweepExpired(ctx context.Context) (int64, error) {
	return r.Repo.ExpirePaymentInstructions(ctx, r.now().UTC().Format(time.RFC3339))
}
