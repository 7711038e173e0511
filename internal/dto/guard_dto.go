package dto

// Workflow requirements the routing layer can ask the guard about.
const (
	RequireOpen   = "require_open"
	RequireClosed = "require_closed"
)

// Redirect targets the UI routing layer understands.
const (
	TargetHome        = "home"
	TargetOpenSession = "sales.open-session"
	TargetCheckout    = "sales.checkout"
)

// GuardDecision is the Access Guard's answer for one navigation attempt.
// It is computed fresh on every call — never cached across navigations.
type GuardDecision struct {
	Allowed bool `json:"allowed"`
	// RedirectTarget is set when Allowed is false.
	RedirectTarget string `json:"redirect_target,omitempty"`
	// OpenSessionID is included when the actor's scope has an open session,
	// so the UI can route straight into it.
	OpenSessionID *string `json:"open_session_id,omitempty"`
	// RolePriorityVersion echoes the server's role-priority table version so
	// clients can detect a stale copy of the routing rules.
	RolePriorityVersion int `json:"role_priority_version"`
}

type RegisterResponse struct {
	RegisterID string `json:"register_id"`
	Name       string `json:"name"`
	BranchID   string `json:"branch_id"`
	Status     string `json:"status"`
}
