package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/cache"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/observability"
	"github.com/boddenberg/lifecover-bfa-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAdminService() (*service.AdminService, *service.RoleResolver, *mockBackend) {
	backend := newMockBackend()
	metrics := observability.NewMetrics()
	roles := service.NewRoleResolver(backend, cache.New[domain.Role](time.Minute), metrics, zap.NewNop())
	svc := service.NewAdminService(service.AdminStores{
		Users:         backend,
		Catalog:       backend,
		Applications:  backend,
		Payments:      backend,
		AgentRequests: backend,
	}, roles, metrics, zap.NewNop())
	return svc, roles, backend
}

func TestChangeRole_InvalidatesResolvedRole(t *testing.T) {
	svc, roles, backend := newAdminService()
	ctx := context.Background()
	backend.users["ana@example.com"] = domain.User{Email: "ana@example.com", Role: "customer"}

	assert.Equal(t, domain.RoleCustomer, roles.Resolve(ctx, "ana@example.com").Role)

	require.NoError(t, svc.ChangeRole(ctx, "boss@example.com", "ana@example.com", domain.RoleAgent))
	assert.Equal(t, domain.RoleAgent, roles.Resolve(ctx, "ana@example.com").Role)
}

func TestChangeRole_Rejections(t *testing.T) {
	svc, _, _ := newAdminService()
	var ve *domain.ErrValidation

	assert.ErrorAs(t, svc.ChangeRole(context.Background(), "boss@example.com", "BOSS@example.com", domain.RoleCustomer), &ve)
	assert.ErrorAs(t, svc.ChangeRole(context.Background(), "boss@example.com", "ana@example.com", domain.Role(0)), &ve)
}

func TestAssignAgent_TargetMustBeAgent(t *testing.T) {
	svc, _, backend := newAdminService()
	ctx := context.Background()
	backend.apps["app-1"] = domain.Application{ID: "app-1"}
	backend.users["ana@example.com"] = domain.User{Email: "ana@example.com", Role: "customer"}
	backend.users["joe@example.com"] = domain.User{Email: "joe@example.com", Role: "agent"}

	var ve *domain.ErrValidation
	assert.ErrorAs(t, svc.AssignAgent(ctx, "app-1", "ana@example.com"), &ve)
	assert.ErrorAs(t, svc.AssignAgent(ctx, "app-1", "ghost@example.com"), &ve)

	require.NoError(t, svc.AssignAgent(ctx, "app-1", "joe@example.com"))
	assert.Equal(t, "joe@example.com", backend.apps["app-1"].AgentEmail)
}

func TestRejectApplication_NeedsFeedback(t *testing.T) {
	svc, _, backend := newAdminService()
	backend.apps["app-1"] = domain.Application{ID: "app-1", Status: domain.ApplicationPending}

	var ve *domain.ErrValidation
	assert.ErrorAs(t, svc.RejectApplication(context.Background(), "app-1", " "), &ve)

	require.NoError(t, svc.RejectApplication(context.Background(), "app-1", "missing documents"))
	assert.Equal(t, domain.ApplicationRejected, backend.apps["app-1"].Status)
	assert.Equal(t, "missing documents", backend.apps["app-1"].RejectionReason)
}

func TestDecideAgentRequest_ApprovalPromotes(t *testing.T) {
	svc, roles, backend := newAdminService()
	ctx := context.Background()
	backend.users["ana@example.com"] = domain.User{Email: "ana@example.com", Role: "customer"}
	backend.agentRequests["r1"] = domain.AgentRequest{ID: "r1", Email: "ana@example.com", Status: domain.ApplicationPending}

	assert.Equal(t, domain.RoleCustomer, roles.Resolve(ctx, "ana@example.com").Role)

	require.NoError(t, svc.DecideAgentRequest(ctx, "r1", true))
	assert.Equal(t, domain.ApplicationApproved, backend.agentRequests["r1"].Status)
	assert.Equal(t, domain.RoleAgent, roles.Resolve(ctx, "ana@example.com").Role)

	var nf *domain.ErrNotFound
	assert.ErrorAs(t, svc.DecideAgentRequest(ctx, "missing", false), &nf)
}

func TestCreatePolicy_Validation(t *testing.T) {
	svc, _, _ := newAdminService()

	_, err := svc.CreatePolicy(context.Background(), &domain.Policy{Title: "Term", Category: "term", MinAge: 10, MaxAge: 60})
	var ve *domain.ErrValidation
	assert.ErrorAs(t, err, &ve)

	p, err := svc.CreatePolicy(context.Background(), &domain.Policy{ID: "forced", Title: "Term", Category: "term", MinAge: 18, MaxAge: 60})
	require.NoError(t, err)
	assert.NotEqual(t, "forced", p.ID)
}
