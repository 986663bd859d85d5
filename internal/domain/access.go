package domain

// ============================================================
// Route guard decisions
// ============================================================

// Outcome is what the route guard decided for a requested view.
type Outcome string

const (
	OutcomeLoading        Outcome = "loading"
	OutcomeRedirectSignIn Outcome = "redirect"
	OutcomeDenied         Outcome = "denied"
	OutcomeAllow          Outcome = "allow"
)

// Decision is the route guard verdict. From is the originally requested
// location, carried only on redirects.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	From    string  `json:"from,omitempty"`
}

// AccessResponse is returned by GET /v1/access.
type AccessResponse struct {
	View     string `json:"view"`
	Outcome  string `json:"outcome"`
	SignIn   string `json:"signIn,omitempty"`
	Role     string `json:"role,omitempty"`
	Fallback bool   `json:"roleFallback,omitempty"`
}
