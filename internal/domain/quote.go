package domain

import (
	"strings"
	"time"
)

// ============================================================
// Premium quote
// ============================================================

const (
	MinQuoteAge      = 18
	MaxQuoteAge      = 99
	MinCoverage      = 100000
	MinQuoteDuration = 5
	MaxQuoteDuration = 50
)

// Gender as captured by the quote form.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// QuoteInput is one submission of the quote form.
type QuoteInput struct {
	Age            int     `json:"age"`
	Gender         Gender  `json:"gender"`
	CoverageAmount float64 `json:"coverageAmount"`
	Duration       int     `json:"duration"`
	Smoker         string  `json:"smoker"`
	PolicyID       string  `json:"policyId,omitempty"`
}

// IsSmoker reports whether the smoker field holds a "yes".
func (q QuoteInput) IsSmoker() bool {
	return strings.EqualFold(strings.TrimSpace(q.Smoker), "yes")
}

// IsFemale reports whether the female discount applies.
func (q QuoteInput) IsFemale() bool {
	return Gender(strings.ToLower(string(q.Gender))) == GenderFemale
}

// Validate checks the ranges the quote form enforces.
func (q QuoteInput) Validate() error {
	if q.Age < MinQuoteAge || q.Age > MaxQuoteAge {
		return &ErrValidation{Field: "age", Message: "must be between 18 and 99"}
	}
	switch Gender(strings.ToLower(string(q.Gender))) {
	case GenderMale, GenderFemale, GenderOther:
	default:
		return &ErrValidation{Field: "gender", Message: "must be male, female or other"}
	}
	if q.CoverageAmount < MinCoverage {
		return &ErrValidation{Field: "coverageAmount", Message: "must be at least 100000"}
	}
	if q.Duration < MinQuoteDuration || q.Duration > MaxQuoteDuration {
		return &ErrValidation{Field: "duration", Message: "must be between 5 and 50 years"}
	}
	switch strings.ToLower(strings.TrimSpace(q.Smoker)) {
	case "yes", "no":
	default:
		return &ErrValidation{Field: "smoker", Message: "must be yes or no"}
	}
	return nil
}

// QuoteResult is returned by POST /v1/quotes.
type QuoteResult struct {
	QuoteID          string     `json:"quoteId"`
	EstimatedPremium float64    `json:"estimatedPremium"`
	Input            QuoteInput `json:"input"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	// IssuedTo is the email of the user the quote was calculated for.
	IssuedTo string `json:"-"`
}
