package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/observability"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var quoteTracer = otel.Tracer("service/quotes")

// CalculatePremium estimates the premium for in. The order of operations is
// fixed: multiplicative gender and smoker factors, then the additive age and
// coverage terms, then duration scaling of the whole amount. No floor is
// applied. The result is rounded to cents.
func CalculatePremium(in domain.QuoteInput) float64 {
	premium := 100.0
	if in.IsFemale() {
		premium *= 0.95
	}
	if in.IsSmoker() {
		premium *= 1.5
	}
	premium += float64(in.Age-20) * 2
	premium += (in.CoverageAmount / 100000) * 5
	premium *= float64(in.Duration) / 5

	return math.Round(premium*100) / 100
}

// QuoteService issues quotes and remembers them until they expire, so an
// application can only be filed against a quote the applicant actually saw.
type QuoteService struct {
	quotes  port.Cache[domain.QuoteResult]
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewQuoteService creates a quote service. quotes must expire entries after ttl.
func NewQuoteService(quotes port.Cache[domain.QuoteResult], ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *QuoteService {
	return &QuoteService{
		quotes:  quotes,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Issue validates in, calculates the premium and remembers the quote for issuer.
func (s *QuoteService) Issue(ctx context.Context, issuer string, in domain.QuoteInput) (*domain.QuoteResult, error) {
	_, span := quoteTracer.Start(ctx, "QuoteService.Issue")
	defer span.End()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	result := domain.QuoteResult{
		QuoteID:          uuid.NewString(),
		EstimatedPremium: CalculatePremium(in),
		Input:            in,
		ExpiresAt:        s.now().Add(s.ttl),
		IssuedTo:         issuer,
	}
	s.quotes.Set(result.QuoteID, result)
	s.metrics.IncrQuote()

	span.SetAttributes(
		attribute.String("quote.id", result.QuoteID),
		attribute.Float64("quote.premium", result.EstimatedPremium),
	)
	s.logger.Debug("quote issued",
		zap.String("quote_id", result.QuoteID),
		zap.Float64("premium", result.EstimatedPremium),
	)
	return &result, nil
}

// Lookup returns a live quote issued to issuer.
func (s *QuoteService) Lookup(quoteID, issuer string) (domain.QuoteResult, bool) {
	if quoteID == "" {
		return domain.QuoteResult{}, false
	}
	q, ok := s.quotes.Get(quoteID)
	if !ok || !strings.EqualFold(q.IssuedTo, issuer) {
		return domain.QuoteResult{}, false
	}
	return q, true
}

// Take removes a live quote issued to issuer and returns it. A quote is
// handed out at most once; a quote belonging to someone else stays put.
func (s *QuoteService) Take(quoteID, issuer string) (domain.QuoteResult, bool) {
	if quoteID == "" {
		return domain.QuoteResult{}, false
	}
	q, ok := s.quotes.Take(quoteID)
	if !ok {
		return domain.QuoteResult{}, false
	}
	if !strings.EqualFold(q.IssuedTo, issuer) {
		s.Restore(q)
		return domain.QuoteResult{}, false
	}
	return q, true
}

// Restore puts a taken quote back for the rest of its lifetime.
func (s *QuoteService) Restore(q domain.QuoteResult) {
	if left := q.ExpiresAt.Sub(s.now()); left > 0 {
		s.quotes.SetWithTTL(q.QuoteID, q, left)
	}
}
