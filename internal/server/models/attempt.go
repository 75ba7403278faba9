package models

// LoginOutcome labels a single login attempt for logs and metrics.
type LoginOutcome string

const (
	OutcomeSuccess     LoginOutcome = "success"
	OutcomeBadPassword LoginOutcome = "bad_password"
	OutcomeBadOTP      LoginOutcome = "bad_otp"
	OutcomeLocked      LoginOutcome = "locked"
	OutcomeUnknownUser LoginOutcome = "unknown_user"
)
