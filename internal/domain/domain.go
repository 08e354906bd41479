package domain

type Mission struct {
	ID               string  `json:"id"`
	CuratorID        string  `json:"curator_id"`
	RunnerID         *string `json:"runner_id,omitempty"`
	VenueID          *string `json:"venue_id,omitempty"`
	Title            string  `json:"title"`
	RequirementsJSON string  `json:"requirements_json,omitempty"`
	Budget           float64 `json:"budget"`
	PaymentMethod    string  `json:"payment_method"`
	Status           string  `json:"status" enum:"pending,in_progress,completed,failed"`
	ProofHash        *string `json:"proof_hash,omitempty"`
	FailureReason    *string `json:"failure_reason,omitempty"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
	CompletedAt      *string `json:"completed_at,omitempty" format:"date-time"`
	FailedAt         *string `json:"failed_at,omitempty" format:"date-time"`
}

type Runner struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name,omitempty"`
	WalletAddr  *string `json:"wallet_address,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

// OracleCredentials are a runner's linked play-history account tokens.
type OracleCredentials struct {
	RunnerID     string `json:"runner_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

// TrackRequirement is the track spec a mission demands, stored serialized
// inside Mission.RequirementsJSON under the "track" key.
type TrackRequirement struct {
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	DurationMS int     `json:"duration_ms,omitempty"`
	BPM        float64 `json:"bpm,omitempty"`
}

type VerificationWindow struct {
	StartTime string `json:"start_time" format:"date-time"`
	EndTime   string `json:"end_time" format:"date-time"`
}

// VerificationTask is one unit of pending verification work. Owned by the
// queue for its whole lifetime; Attempts counts error retries only, deferred
// re-checks do not touch it.
type VerificationTask struct {
	ID          string             `json:"id"`
	MissionID   string             `json:"mission_id"`
	RunnerID    string             `json:"runner_id"`
	Window      VerificationWindow `json:"window"`
	Attempts    int                `json:"attempts"`
	MaxAttempts int                `json:"max_attempts"`
	RetryAt     *string            `json:"retry_at,omitempty" format:"date-time"`
	CreatedAt   string             `json:"created_at" format:"date-time"`
}

// VerificationResult is the oracle's answer for one attempt. Ephemeral; only
// the proof document outlives it.
type VerificationResult struct {
	TrackFound bool    `json:"track_found"`
	Confidence float64 `json:"confidence"`
	Details    string  `json:"details,omitempty"`
	PlayTime   string  `json:"play_time,omitempty" format:"date-time"`
	DurationMS int     `json:"duration_ms,omitempty"`
	Venue      string  `json:"venue,omitempty"`
}

// ProofDocument is the immutable manifest archived on successful
// verification. ContentID is set once by the archiver and never changes.
type ProofDocument struct {
	MissionID  string             `json:"mission_id"`
	RunnerID   string             `json:"runner_id"`
	VerifiedAt string             `json:"verified_at" format:"date-time"`
	Track      TrackRequirement   `json:"track"`
	Result     VerificationResult `json:"result"`
	Method     string             `json:"method"`
	ContentID  string             `json:"content_id,omitempty"`
}

type PaymentInstruction struct {
	ID                 string  `json:"id"`
	MissionID          string  `json:"mission_id"`
	CuratorID          string  `json:"curator_id"`
	Method             string  `json:"payment_method"`
	Amount             float64 `json:"amount"`
	Fee                float64 `json:"fee"`
	Recipient          string  `json:"recipient"`
	Note               string  `json:"note,omitempty"`
	Steps              string  `json:"steps,omitempty"`
	Status             string  `json:"status" enum:"pending,completed,expired"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
	ExpiresAt          string  `json:"expires_at" format:"date-time"`
	CompletedAt        *string `json:"completed_at,omitempty" format:"date-time"`
	TransactionDetails *string `json:"transaction_details,omitempty"`
}

// PaymentResult is what the router returns to the worker.
type PaymentResult struct {
	TransactionID string              `json:"transaction_id"`
	Method        string              `json:"method"`
	Amount        float64             `json:"amount"`
	Fee           float64             `json:"fee"`
	Status        string              `json:"status" enum:"pending,completed"`
	Instruction   *PaymentInstruction `json:"instruction,omitempty"`
}

// ScheduledVerification is a durable row arming a future enqueue. It survives
// process restarts, unlike an in-memory timer.
type ScheduledVerification struct {
	ID        string             `json:"id"`
	MissionID string             `json:"mission_id"`
	RunnerID  string             `json:"runner_id"`
	Window    VerificationWindow `json:"window"`
	EnqueueAt string             `json:"enqueue_at" format:"date-time"`
	Status    string             `json:"status" enum:"armed,enqueued,canceled"`
	CreatedAt string             `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Mission statuses. Completed and failed are terminal; nothing transitions
// out of them.
const (
	MissionPending    = "pending"
	MissionInProgress = "in_progress"
	MissionCompleted  = "completed"
	MissionFailed     = "failed"
)

// IsTerminalMissionStatus reports whether a status permits no further
// transition.
func IsTerminalMissionStatus(status string) bool {
	return status == MissionCompleted || status == MissionFailed
}

// Payment instruction statuses.
const (
	InstructionPending   = "pending"
	InstructionCompleted = "completed"
	InstructionExpired   = "expired"
)
