package audithook

// Action constants for audit events.
const (
	// Token actions
	ActionTokenMinted = "token.minted"

	// Transfer actions
	ActionTransferApplied  = "transfer.applied"
	ActionTransferReverted = "transfer.reverted"

	// Approval actions
	ActionApprovalGranted = "approval.granted"
	ActionApprovalRevoked = "approval.revoked"

	// Transfer-and-notify actions
	ActionNotifyDispatched = "notify.dispatched"
	ActionTransferResolved = "transfer.resolved"
)

// Resource constants for audit events.
const (
	ResourceToken    = "token"
	ResourceApproval = "approval"
	ResourcePending  = "pending_transfer"
)

// Category constants for audit events.
const (
	CategoryIssuance = "issuance"
	CategoryTransfer = "transfer"
	CategoryAccess   = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
