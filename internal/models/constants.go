package models

const (
	EntryStatusOpen   = "OPEN"
	EntryStatusClosed = "CLOSED"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusRetry      = "retry"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

const (
	TaskTicketEmail = "ticket_email"
	TaskBillEmail   = "bill_email"
	TaskBillChat    = "bill_chat"
	TaskLedgerRow   = "ledger_row"
)

const (
	// DateLayout is the format of report date parameters.
	DateLayout = "2006-01-02"

	// DefaultWorkerQueueSize is the in-memory notification queue capacity.
	DefaultWorkerQueueSize = 128

	// DefaultRateLimitRequests per DefaultRateLimitWindow seconds for one principal.
	DefaultRateLimitRequests = 120
	DefaultRateLimitWindow   = 60

	// DefaultTokenTTLHours is the JWT lifetime when the config leaves it empty.
	DefaultTokenTTLHours = 12
)
