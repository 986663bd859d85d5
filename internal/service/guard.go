package service

import (
	"context"
	"strings"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/observability"
)

// SessionState is what the session holder knows when a view is requested.
type SessionState struct {
	Initializing bool
	Identity     *domain.Identity
}

// RoleState is the progress of role resolution for the requesting identity.
type RoleState struct {
	Completed bool
	Role      domain.Role
}

// Decide is the route guard. It returns exactly one outcome for a request to
// location given the session, the role resolution and the permitted roles
// (empty means any signed-in identity):
//
//   - Loading while the session initializes, or while a permitted-role list
//     is supplied and role resolution has not completed.
//   - RedirectSignIn when there is no identity; From preserves location.
//   - Denied when the resolved role is not permitted.
//   - Allow otherwise.
//
// An incomplete or zero role is never treated as any role.
func Decide(session SessionState, role RoleState, permitted []domain.Role, location string) domain.Decision {
	if session.Initializing {
		return domain.Decision{Outcome: domain.OutcomeLoading}
	}
	if session.Identity == nil {
		return domain.Decision{Outcome: domain.OutcomeRedirectSignIn, From: location}
	}
	if len(permitted) == 0 {
		return domain.Decision{Outcome: domain.OutcomeAllow}
	}
	if !role.Completed {
		return domain.Decision{Outcome: domain.OutcomeLoading}
	}
	if !role.Role.Valid() || !role.Role.In(permitted) {
		return domain.Decision{Outcome: domain.OutcomeDenied}
	}
	return domain.Decision{Outcome: domain.OutcomeAllow}
}

// ViewRule is the access rule of one SPA view subtree.
type ViewRule struct {
	Prefix    string
	Permitted []domain.Role
}

var (
	adminOnly    = []domain.Role{domain.RoleAdmin}
	agentOnly    = []domain.Role{domain.RoleAgent}
	customerOnly = []domain.Role{domain.RoleCustomer}
)

// ViewPermissions lists the guarded SPA views. Views not covered by any rule
// are public. A rule without roles only requires a signed-in identity.
var ViewPermissions = []ViewRule{
	{Prefix: "/dashboard"},
	{Prefix: "/dashboard/profile"},
	{Prefix: "/dashboard/manage-users", Permitted: adminOnly},
	{Prefix: "/dashboard/manage-policies", Permitted: adminOnly},
	{Prefix: "/dashboard/manage-applications", Permitted: adminOnly},
	{Prefix: "/dashboard/manage-transactions", Permitted: adminOnly},
	{Prefix: "/dashboard/manage-agents", Permitted: adminOnly},
	{Prefix: "/dashboard/assigned-customers", Permitted: agentOnly},
	{Prefix: "/dashboard/manage-blogs", Permitted: agentOnly},
	{Prefix: "/dashboard/my-policies", Permitted: customerOnly},
	{Prefix: "/dashboard/payment-status", Permitted: customerOnly},
	{Prefix: "/dashboard/claim-request", Permitted: customerOnly},
	{Prefix: "/dashboard/apply-as-agent", Permitted: customerOnly},
	{Prefix: "/quote"},
	{Prefix: "/apply"},
	{Prefix: "/payment", Permitted: customerOnly},
}

// RuleFor returns the most specific rule covering view.
func RuleFor(view string) (ViewRule, bool) {
	view = cleanPath(view)
	var (
		best  ViewRule
		found bool
	)
	for _, rule := range ViewPermissions {
		if hasPathPrefix(view, rule.Prefix) && len(rule.Prefix) > len(best.Prefix) {
			best, found = rule, true
		}
	}
	return best, found
}

// Guard composes the session holder's readiness with role resolution.
type Guard struct {
	ready   interface{ Ready() bool }
	roles   *RoleResolver
	metrics *observability.Metrics
}

// NewGuard creates a guard.
func NewGuard(ready interface{ Ready() bool }, roles *RoleResolver, metrics *observability.Metrics) *Guard {
	return &Guard{ready: ready, roles: roles, metrics: metrics}
}

// Evaluate decides access for sess (nil when signed out). The role is only
// resolved once the session holder is ready and a role list applies. A
// session that exists but could not be loaded counts as still initializing.
func (g *Guard) Evaluate(ctx context.Context, sess *domain.Session, permitted []domain.Role, location string) (domain.Decision, RoleResolution) {
	state := SessionState{Initializing: !g.ready.Ready() || (sess == nil && SessionUnavailable(ctx))}
	if sess != nil {
		state.Identity = &sess.Identity
	}

	var (
		role RoleState
		res  RoleResolution
	)
	if !state.Initializing && state.Identity != nil && len(permitted) > 0 {
		res = g.roles.Resolve(ctx, state.Identity.Email)
		role = RoleState{Completed: ctx.Err() == nil, Role: res.Role}
	}

	d := Decide(state, role, permitted, location)
	g.metrics.IncrGuardDecision(d.Outcome)
	return d, res
}

// EvaluateView is Evaluate for a SPA view path looked up in ViewPermissions.
// Unguarded views are allowed without an identity and never reach the
// backend; their resolution carries the memoised role when there is one.
func (g *Guard) EvaluateView(ctx context.Context, sess *domain.Session, view string) (domain.Decision, RoleResolution) {
	rule, guarded := RuleFor(view)
	if !guarded {
		var res RoleResolution
		if sess != nil && g.ready.Ready() {
			res, _ = g.roles.Cached(sess.Identity.Email)
		}
		g.metrics.IncrGuardDecision(domain.OutcomeAllow)
		return domain.Decision{Outcome: domain.OutcomeAllow}, res
	}
	return g.Evaluate(ctx, sess, rule.Permitted, view)
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// hasPathPrefix reports whether prefix covers path on a segment boundary:
// "/dashboard/manage-blogs" covers "/dashboard/manage-blogs/x" but not
// "/dashboard/manage-blogs-old".
func hasPathPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
