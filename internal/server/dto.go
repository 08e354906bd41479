package server

import (
	"encoding/json"

	"clubrun/internal/domain"
)

// Request payloads

type CreateMissionRequest struct {
	ID            *string                  `json:"id,omitempty"`
	CuratorID     string                   `json:"curator_id,omitempty"`
	VenueID       *string                  `json:"venue_id,omitempty"`
	Title         string                   `json:"title"`
	Track         *domain.TrackRequirement `json:"track,omitempty"`
	Budget        float64                  `json:"budget"`
	PaymentMethod string                   `json:"payment_method" enum:"matic,usdc,paypal,cashapp,zelle,venmo"`
}

type AssignRunnerRequest struct {
	RunnerID string `json:"runner_id"`
}

type CreateRunnerRequest struct {
	ID            *string `json:"id,omitempty"`
	DisplayName   string  `json:"display_name,omitempty"`
	WalletAddress *string `json:"wallet_address,omitempty"`
}

type LinkOracleRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at" format:"date-time"`
}

type VerificationWindowRequest struct {
	StartTime string `json:"start_time" format:"date-time"`
	EndTime   string `json:"end_time" format:"date-time"`
}

type CompletePaymentRequest struct {
	TransactionDetails string `json:"transaction_details,omitempty"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles,omitempty"`
}

// Response payloads

type MissionResponse struct {
	ID            string                   `json:"id"`
	CuratorID     string                   `json:"curator_id"`
	RunnerID      *string                  `json:"runner_id,omitempty"`
	VenueID       *string                  `json:"venue_id,omitempty"`
	Title         string                   `json:"title"`
	Track         *domain.TrackRequirement `json:"track,omitempty"`
	Budget        float64                  `json:"budget"`
	PaymentMethod string                   `json:"payment_method"`
	Status        string                   `json:"status" enum:"pending,in_progress,completed,failed"`
	ProofHash     *string                  `json:"proof_hash,omitempty"`
	FailureReason *string                  `json:"failure_reason,omitempty"`
	CreatedAt     string                   `json:"created_at" format:"date-time"`
	UpdatedAt     string                   `json:"updated_at" format:"date-time"`
	CompletedAt   *string                  `json:"completed_at,omitempty" format:"date-time"`
	FailedAt      *string                  `json:"failed_at,omitempty" format:"date-time"`
}

type RunnerResponse struct {
	ID            string  `json:"id"`
	DisplayName   string  `json:"display_name,omitempty"`
	WalletAddress *string `json:"wallet_address,omitempty"`
	OracleLinked  bool    `json:"oracle_linked"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

type PaymentResponse struct {
	TransactionID string                     `json:"transaction_id"`
	Method        string                     `json:"method"`
	Amount        float64                    `json:"amount"`
	Fee           float64                    `json:"fee"`
	Status        string                     `json:"status" enum:"pending,completed"`
	Instruction   *domain.PaymentInstruction `json:"instruction,omitempty"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type MeResponse struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles"`
	Source  string   `json:"source"`
}

// Mappers

func missionResponse(m domain.Mission) MissionResponse {
	resp := MissionResponse{
		ID:            m.ID,
		CuratorID:     m.CuratorID,
		RunnerID:      m.RunnerID,
		VenueID:       m.VenueID,
		Title:         m.Title,
		Budget:        m.Budget,
		PaymentMethod: m.PaymentMethod,
		Status:        m.Status,
		ProofHash:     m.ProofHash,
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		CompletedAt:   m.CompletedAt,
		FailedAt:      m.FailedAt,
	}
	resp.Track = decodeTrack(m.RequirementsJSON)
	return resp
}

func decodeTrack(requirementsJSON string) *domain.TrackRequirement {
	if requirementsJSON == "" {
		return nil
	}
	var wrapper struct {
		Track *domain.TrackRequirement `json:"track"`
	}
	if err := json.Unmarshal([]byte(requirementsJSON), &wrapper); err != nil {
		return nil
	}
	return wrapper.Track
}

func runnerResponse(r domain.Runner, oracleLinked bool) RunnerResponse {
	return RunnerResponse{
		ID:            r.ID,
		DisplayName:   r.DisplayName,
		WalletAddress: r.WalletAddr,
		OracleLinked:  oracleLinked,
		CreatedAt:     r.CreatedAt,
	}
}

func paymentResponse(res domain.PaymentResult) PaymentResponse {
	return PaymentResponse{
		TransactionID: res.TransactionID,
		Method:        res.Method,
		Amount:        res.Amount,
		Fee:           res.Fee,
		Status:        res.Status,
		Instruction:   res.Instruction,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func mapMissions(items []domain.Mission) []MissionResponse {
	out := []MissionResponse{}
	for _, m := range items {
		out = append(out, missionResponse(m))
	}
	return out
}

func mapEvents(items []domain.Event) []EventResponse {
	out := []EventResponse{}
	for _, e := range items {
		out = append(out, eventResponse(e))
	}
	return out
}
