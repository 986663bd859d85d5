package domain

import "time"

// ============================================================
// Catalog: policies, blogs, reviews
// ============================================================

// Policy is an insurance product offered on the public site.
type Policy struct {
	ID              string   `json:"_id,omitempty"`
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	MinAge          int      `json:"minAge"`
	MaxAge          int      `json:"maxAge"`
	CoverageRange   string   `json:"coverageRange,omitempty"`
	DurationOptions []int    `json:"durationOptions,omitempty"`
	BasePremiumRate float64  `json:"basePremiumRate,omitempty"`
	ImageURL        string   `json:"image,omitempty"`
	PurchaseCount   int      `json:"purchaseCount,omitempty"`
	Benefits        []string `json:"benefits,omitempty"`
}

// PolicyPage is one page of the policy catalog.
type PolicyPage struct {
	Policies   []Policy `json:"policies"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalPages int      `json:"totalPages"`
}

// PolicyQuery filters the policy catalog.
type PolicyQuery struct {
	Search   string
	Category string
	Page     int
	PageSize int
}

// Blog is an article written by an agent or admin.
type Blog struct {
	ID          string    `json:"_id,omitempty"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ImageURL    string    `json:"image,omitempty"`
	AuthorName  string    `json:"authorName,omitempty"`
	AuthorEmail string    `json:"authorEmail,omitempty"`
	AuthorPhoto string    `json:"authorPhoto,omitempty"`
	Visits      int       `json:"totalVisit,omitempty"`
	PublishedAt time.Time `json:"publishDate,omitempty"`
}

// Review is a customer testimonial.
type Review struct {
	ID        string    `json:"_id,omitempty"`
	UserName  string    `json:"userName"`
	UserPhoto string    `json:"userPhoto,omitempty"`
	PolicyID  string    `json:"policyId,omitempty"`
	Rating    int       `json:"rating"`
	Feedback  string    `json:"feedback"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// NewsletterSubscription is the body for POST /v1/newsletter.
type NewsletterSubscription struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ============================================================
// Applications, payments, claims
// ============================================================

// Application statuses as stored by the backend.
const (
	ApplicationPending  = "Pending"
	ApplicationApproved = "Approved"
	ApplicationRejected = "Rejected"
)

// Applicant is the personal section of the application form.
type Applicant struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	NID     string `json:"nid"`
	Phone   string `json:"phone,omitempty"`
}

// Nominee is the beneficiary section of the application form.
type Nominee struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
}

// ApplicationRequest is the body for POST /v1/applications.
type ApplicationRequest struct {
	QuoteID       string            `json:"quoteId"`
	PolicyID      string            `json:"policyId"`
	Applicant     Applicant         `json:"applicant"`
	Nominee       Nominee           `json:"nominee"`
	HealthHistory []string          `json:"healthHistory,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Application is a policy application as stored by the backend.
type Application struct {
	ID               string     `json:"_id,omitempty"`
	PolicyID         string     `json:"policyId"`
	PolicyTitle      string     `json:"policyTitle,omitempty"`
	Applicant        Applicant  `json:"applicant"`
	Nominee          Nominee    `json:"nominee"`
	HealthHistory    []string   `json:"healthHistory,omitempty"`
	Quote            QuoteInput `json:"quote"`
	EstimatedPremium float64    `json:"estimatedPremium"`
	Status           string     `json:"status"`
	AgentEmail       string     `json:"agentEmail,omitempty"`
	RejectionReason  string     `json:"rejectionReason,omitempty"`
	PaymentStatus    string     `json:"paymentStatus,omitempty"`
	CreatedAt        time.Time  `json:"createdAt,omitempty"`
}

// StatusUpdate is a generic status change body.
type StatusUpdate struct {
	Status   string `json:"status"`
	Feedback string `json:"feedback,omitempty"`
}

// AgentAssignment is the body for assigning an agent to an application.
type AgentAssignment struct {
	AgentEmail string `json:"agentEmail"`
}

// PaymentIntentRequest is the body for POST /v1/payments/intent.
type PaymentIntentRequest struct {
	ApplicationID string  `json:"applicationId"`
	Amount        float64 `json:"amount"`
}

// PaymentIntent is what the payment processor hands back through the backend.
type PaymentIntent struct {
	ClientSecret string `json:"clientSecret"`
}

// Payment records a confirmed premium payment.
type Payment struct {
	ID            string    `json:"_id,omitempty"`
	ApplicationID string    `json:"applicationId"`
	PolicyTitle   string    `json:"policyTitle,omitempty"`
	Email         string    `json:"email"`
	Amount        float64   `json:"amount"`
	Frequency     string    `json:"frequency,omitempty"`
	TransactionID string    `json:"transactionId"`
	Status        string    `json:"status"`
	PaidAt        time.Time `json:"date,omitempty"`
}

// Claim is a claim request against an approved policy.
type Claim struct {
	ID            string    `json:"_id,omitempty"`
	ApplicationID string    `json:"applicationId"`
	PolicyTitle   string    `json:"policyTitle,omitempty"`
	Email         string    `json:"email"`
	Reason        string    `json:"reason"`
	DocumentURL   string    `json:"documentUrl,omitempty"`
	Status        string    `json:"status,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// ============================================================
// Users and agent requests
// ============================================================

// User is the backend profile record for an email.
type User struct {
	ID          string     `json:"_id,omitempty"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	PhotoURL    string     `json:"photo,omitempty"`
	Role        string     `json:"role,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Address     string     `json:"address,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`
}

// ProfileUpdate is the body for PATCH /v1/me/profile.
type ProfileUpdate struct {
	Name     string `json:"name,omitempty"`
	PhotoURL string `json:"photo,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

// RoleChange is the body for PATCH /v1/admin/users/{email}/role.
type RoleChange struct {
	Role Role `json:"role"`
}

// AgentRequest is a customer's application to become an agent.
type AgentRequest struct {
	ID         string    `json:"_id,omitempty"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Experience string    `json:"experience"`
	Motivation string    `json:"motivation"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// Transaction is a payment row in the admin transactions table.
type Transaction struct {
	ID            string    `json:"_id,omitempty"`
	TransactionID string    `json:"transactionId"`
	Email         string    `json:"email"`
	PolicyTitle   string    `json:"policyTitle,omitempty"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	Date          time.Time `json:"date"`
}

// UploadedImage is returned by POST /v1/uploads/image.
type UploadedImage struct {
	URL        string `json:"url"`
	DisplayURL string `json:"displayUrl,omitempty"`
	DeleteURL  string `json:"deleteUrl,omitempty"`
}
