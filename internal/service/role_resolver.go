package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/observability"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var roleTracer = otel.Tracer("service/roles")

// roleFetchTimeout bounds a shared backend role lookup.
const roleFetchTimeout = 5 * time.Second

// RoleResolution is the outcome of resolving an identity's role.
// Fallback is set when the backend could not answer and Role holds the
// least-privileged FallbackRole instead; Err keeps the cause for logging.
type RoleResolution struct {
	Role     domain.Role
	Fallback bool
	Err      error
}

// Resolved reports whether r carries a usable role.
func (r RoleResolution) Resolved() bool {
	return r.Role.Valid()
}

// RoleResolver asks the backend for an email's role, memoising answers for a
// short TTL. Concurrent resolutions of the same email share one backend call.
type RoleResolver struct {
	fetcher port.RoleFetcher
	cache   port.Cache[domain.Role]
	group   singleflight.Group
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRoleResolver creates a resolver. cache may be nil to disable memoisation.
func NewRoleResolver(fetcher port.RoleFetcher, cache port.Cache[domain.Role], metrics *observability.Metrics, logger *zap.Logger) *RoleResolver {
	return &RoleResolver{
		fetcher: fetcher,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

func roleCacheKey(email string) string {
	return "role:" + strings.ToLower(strings.TrimSpace(email))
}

// Resolve returns the role for email. It never fails: any backend error or
// unknown role string yields FallbackRole with Fallback set.
func (r *RoleResolver) Resolve(ctx context.Context, email string) RoleResolution {
	ctx, span := roleTracer.Start(ctx, "RoleResolver.Resolve")
	defer span.End()

	if strings.TrimSpace(email) == "" {
		return r.fallback(email, errors.New("identity has no email"))
	}

	key := roleCacheKey(email)
	if r.cache != nil {
		if role, ok := r.cache.Get(key); ok {
			r.metrics.IncrCacheHit("role")
			r.metrics.IncrRoleResolution("cache")
			span.SetAttributes(attribute.String("role", role.String()), attribute.Bool("cached", true))
			return RoleResolution{Role: role}
		}
		r.metrics.IncrCacheMiss("role")
	}

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := r.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), roleFetchTimeout)
		defer cancel()
		raw, err := r.fetcher.GetRole(fetchCtx, email)
		if err != nil {
			return domain.Role(0), err
		}
		return domain.ParseRole(raw)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return r.fallback(email, ctx.Err())
	}
	if res.Err != nil {
		span.RecordError(res.Err)
		return r.fallback(email, res.Err)
	}

	role := res.Val.(domain.Role)
	if r.cache != nil {
		r.cache.Set(key, role)
	}
	r.metrics.IncrRoleResolution("backend")
	span.SetAttributes(attribute.String("role", role.String()), attribute.Bool("cached", false))
	return RoleResolution{Role: role}
}

// Cached returns the memoised role of email without asking the backend.
func (r *RoleResolver) Cached(email string) (RoleResolution, bool) {
	if r.cache == nil || strings.TrimSpace(email) == "" {
		return RoleResolution{}, false
	}
	role, ok := r.cache.Get(roleCacheKey(email))
	if !ok {
		return RoleResolution{}, false
	}
	return RoleResolution{Role: role}, true
}

func (r *RoleResolver) fallback(email string, err error) RoleResolution {
	r.metrics.IncrRoleResolution("fallback")
	r.logger.Warn("role resolution failed, using fallback role",
		zap.String("email", email),
		zap.String("fallback", domain.FallbackRole.String()),
		zap.Error(err),
	)
	return RoleResolution{Role: domain.FallbackRole, Fallback: true, Err: err}
}

// Invalidate drops the memoised role of email.
func (r *RoleResolver) Invalidate(email string) {
	if r.cache == nil {
		return
	}
	r.cache.Delete(roleCacheKey(email))
}
