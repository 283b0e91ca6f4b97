package auth

// Known OAuth scopes used by the timer API.
const (
	ScopeTimerWrite = "timer:write"
	ScopeTimerRead  = "timer:read"
)
