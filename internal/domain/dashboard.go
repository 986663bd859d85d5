package domain

// ============================================================
// Dashboard shell
// ============================================================

// NavEntry is one item of the dashboard side navigation.
type NavEntry struct {
	Label        string `json:"label"`
	Path         string `json:"path"`
	Icon         string `json:"icon,omitempty"`
	ClosesDrawer bool   `json:"closesDrawer"`
}

// Breadcrumb is one segment of the current dashboard path.
type Breadcrumb struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// DashboardShell is returned by GET /v1/dashboard/shell.
type DashboardShell struct {
	Role         Role         `json:"role"`
	RoleFallback bool         `json:"roleFallback,omitempty"`
	Nav          []NavEntry   `json:"nav"`
	Title        string       `json:"title"`
	Breadcrumbs  []Breadcrumb `json:"breadcrumbs"`
}

// DashboardOverview holds the counters shown on the overview page.
type DashboardOverview struct {
	Role     Role           `json:"role"`
	Counters map[string]int `json:"counters"`
}
