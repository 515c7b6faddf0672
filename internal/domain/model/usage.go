package model

import "time"

// ActionKind identifies a metered action. Costs come from the catalog.
type ActionKind string

const (
	ActionResumeGeneration ActionKind = "resume_generation"
	ActionCoverLetter      ActionKind = "cover_letter"
	ActionChatMessage      ActionKind = "chat_message"
	ActionJobMatch         ActionKind = "job_match"
)

type UsageResult string

const (
	UsageCharged UsageResult = "charged"
	UsageDenied  UsageResult = "denied"
)

// UsageEvent is one append-only record per metered action, charged or not.
// IDs are ULIDs so the log sorts by time.
type UsageEvent struct {
	ID             string
	AccountID      string
	ActionKind     ActionKind
	CreditsCharged int64
	Result         UsageResult
	CreatedAt      time.Time
}

// Receipt proves a successful reservation. A caller whose downstream work
// fails presents it to Refund; the draw split lets the refund restore the
// exact buckets the charge came from.
type Receipt struct {
	ID        string // UUID
	AccountID string
	Action    ActionKind
	Charged   int64
	Draw      Draw
	IssuedAt  time.Time
}

// Refund is one row of the refund log. ReceiptID is unique, so a receipt
// presented twice (an internal caller retrying on timeout) restores its
// buckets exactly once.
type Refund struct {
	ID        string // UUID
	ReceiptID string
	AccountID string
	Action    ActionKind
	Amount    int64
	CreatedAt time.Time
}
