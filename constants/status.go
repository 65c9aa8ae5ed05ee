package constants

// ItemState is the folder state of a work item. There is no persisted failed
// state: a failed attempt releases its lock and leaves the item unprocessed.
type ItemState string

const (
	ItemStateUnprocessed ItemState = "UNPROCESSED"
	ItemStateLocked      ItemState = "LOCKED"
	ItemStateProcessed   ItemState = "PROCESSED"
)

// ItemOutcome is the result of one attempt at a work item within a pass.
type ItemOutcome string

const (
	OutcomeProcessed      ItemOutcome = "PROCESSED"
	OutcomeLockContended  ItemOutcome = "SKIPPED_LOCKED"
	OutcomeUnknownOrder   ItemOutcome = "SKIPPED_UNKNOWN_ORDER"
	OutcomeNoValidResults ItemOutcome = "NO_VALID_RESULTS" // pending review, stays unprocessed
	OutcomeFailed         ItemOutcome = "FAILED"
)
