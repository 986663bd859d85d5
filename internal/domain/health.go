package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// AccessMetrics is returned by GET /v1/admin/metrics/access.
type AccessMetrics struct {
	GuardAllowed     int64   `json:"guardAllowed"`
	GuardDenied      int64   `json:"guardDenied"`
	GuardRedirected  int64   `json:"guardRedirected"`
	GuardLoading     int64   `json:"guardLoading"`
	RoleResolutions  int64   `json:"roleResolutions"`
	RoleFallbackRate float64 `json:"roleFallbackRate"`
	RoleCacheHitRate float64 `json:"roleCacheHitRate"`
	QuotesIssued     int64   `json:"quotesIssued"`
	Period           string  `json:"period"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
