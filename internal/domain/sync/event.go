package sync

// Event kinds carried over the bus.
const (
	EventRequirementUpdated = "requirement-updated"
	EventTestFailure        = "test-failure"
)

// Sync directions as recorded in the ledger.
const (
	DirectionInbound  = "tracker-to-warehouse"
	DirectionOutbound = "warehouse-to-tracker"
)

// Entity kinds as recorded in the ledger.
const (
	EntityRequirement = "requirement"
	EntityDefect      = "defect"
)

// Ledger attempt states.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Test result outcomes.
const (
	TestStatusPassed  = "passed"
	TestStatusFailed  = "failed"
	TestStatusSkipped = "skipped"
	TestStatusError   = "error"
)

// Event is the minimal envelope published on the bus. Consumers re-fetch
// current state from the repositories instead of trusting a snapshot: the
// bus guarantees delivery, not freshness or ordering.
type Event struct {
	EventType string `json:"event_type"`
	EntityID  string `json:"entity_id"`
	Timestamp string `json:"timestamp"`
}
