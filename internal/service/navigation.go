package service

import (
	"strings"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"

	"github.com/mssola/useragent"
)

const editBlogPath = "/dashboard/manage-blogs/edit-blog"

var commonNav = []domain.NavEntry{
	{Label: "Overview", Path: "/dashboard", Icon: "home"},
	{Label: "Profile", Path: "/dashboard/profile", Icon: "user"},
}

// NavigationFor returns the dashboard menu of role: the common entries
// followed by the role's own. An unresolved role gets only the common part.
func NavigationFor(role domain.Role) []domain.NavEntry {
	nav := append([]domain.NavEntry(nil), commonNav...)

	switch role {
	case domain.RoleAdmin:
		nav = append(nav,
			domain.NavEntry{Label: "Manage Users", Path: "/dashboard/manage-users", Icon: "users"},
			domain.NavEntry{Label: "Manage Policies", Path: "/dashboard/manage-policies", Icon: "file-text"},
			domain.NavEntry{Label: "Manage Applications", Path: "/dashboard/manage-applications", Icon: "clipboard"},
			domain.NavEntry{Label: "Manage Transactions", Path: "/dashboard/manage-transactions", Icon: "credit-card"},
			domain.NavEntry{Label: "Manage Agents", Path: "/dashboard/manage-agents", Icon: "briefcase"},
		)
	case domain.RoleAgent:
		nav = append(nav,
			domain.NavEntry{Label: "Assigned Customers", Path: "/dashboard/assigned-customers", Icon: "users"},
			domain.NavEntry{Label: "Manage Blogs", Path: "/dashboard/manage-blogs", Icon: "edit"},
		)
	case domain.RoleCustomer:
		nav = append(nav,
			domain.NavEntry{Label: "My Policies", Path: "/dashboard/my-policies", Icon: "shield"},
			domain.NavEntry{Label: "Payment Status", Path: "/dashboard/payment-status", Icon: "credit-card"},
			domain.NavEntry{Label: "Claim Request", Path: "/dashboard/claim-request", Icon: "file-plus"},
			domain.NavEntry{Label: "Apply as Agent", Path: "/dashboard/apply-as-agent", Icon: "award"},
		)
	}
	return nav
}

// PageTitle derives the dashboard page title for path.
func PageTitle(path string, entries []domain.NavEntry) string {
	path = cleanPath(path)
	if hasPathPrefix(path, editBlogPath) {
		return "Edit Blog"
	}

	title, longest := "", -1
	for _, e := range entries {
		if hasPathPrefix(path, e.Path) && len(e.Path) > longest {
			title, longest = e.Label, len(e.Path)
		}
	}
	if title == "" {
		return "Dashboard"
	}
	return title
}

// Breadcrumbs returns one crumb per segment of path. A crumb is labelled by
// the nav entry whose path equals the cumulative path, else by the segment
// text split on hyphens and capitalised.
func Breadcrumbs(path string, entries []domain.NavEntry) []domain.Breadcrumb {
	labels := make(map[string]string, len(entries))
	for _, e := range entries {
		labels[e.Path] = e.Label
	}

	var (
		crumbs     []domain.Breadcrumb
		cumulative strings.Builder
	)
	for _, seg := range strings.Split(cleanPath(path), "/") {
		if seg == "" {
			continue
		}
		cumulative.WriteString("/" + seg)
		p := cumulative.String()

		label, ok := labels[p]
		if !ok {
			label = humanize(seg)
		}
		crumbs = append(crumbs, domain.Breadcrumb{Label: label, Path: p})
	}
	return crumbs
}

func humanize(segment string) string {
	words := strings.Split(segment, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// IsNarrowViewport reports whether userAgent belongs to a phone-class device,
// where the off-canvas menu must close after a selection.
func IsNarrowViewport(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	return useragent.New(userAgent).Mobile()
}

// BuildShell assembles the dashboard shell for a resolved role.
func BuildShell(res RoleResolution, path string, narrow bool) *domain.DashboardShell {
	nav := NavigationFor(res.Role)
	if narrow {
		for i := range nav {
			nav[i].ClosesDrawer = true
		}
	}
	return &domain.DashboardShell{
		Role:         res.Role,
		RoleFallback: res.Fallback,
		Nav:          nav,
		Title:        PageTitle(path, nav),
		Breadcrumbs:  Breadcrumbs(path, nav),
	}
}
