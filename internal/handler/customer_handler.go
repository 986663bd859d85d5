package handler

import (
	"bytes"
	"io"
	"net/http"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"
	"github.com/boddenberg/lifecover-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Customer flows
// ============================================================

func applyHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/applications")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		var req domain.ApplicationRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		app, err := customers.Apply(ctx, &sess.Identity, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, app)
	}
}

func myPoliciesHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/policies")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		apps, err := customers.MyPolicies(ctx, sess.Identity.Email)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
	}
}

func myPaymentsHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/payments")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		payments, err := customers.MyPayments(ctx, sess.Identity.Email)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
	}
}

// paymentConfigHandler hands the checkout form the processor's publishable key.
func paymentConfigHandler(publicKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if publicKey == "" {
			writeError(w, http.StatusServiceUnavailable, "payments are not configured")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"publishableKey": publicKey})
	}
}

// paymentIntentHandler forwards the client's Idempotency-Key so a retried
// checkout does not open a second intent.
func paymentIntentHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/payments/intent")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		var req domain.PaymentIntentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		span.SetAttributes(attribute.String("application.id", req.ApplicationID))

		intent, err := customers.CreatePaymentIntent(ctx, sess.Identity.Email, &req, r.Header.Get("Idempotency-Key"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, intent)
	}
}

func recordPaymentHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/payments")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		var p domain.Payment
		if !decodeJSON(w, r, &p) {
			return
		}
		saved, err := customers.RecordPayment(ctx, sess.Identity.Email, &p)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

func fileClaimHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/claims")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		var c domain.Claim
		if !decodeJSON(w, r, &c) {
			return
		}
		claim, err := customers.FileClaim(ctx, sess.Identity.Email, &c)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, claim)
	}
}

func submitReviewHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reviews")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		var review domain.Review
		if !decodeJSON(w, r, &review) {
			return
		}
		if err := customers.SubmitReview(ctx, &sess.Identity, &review); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, domain.SuccessResponse{Message: "review published"})
	}
}

func applyAsAgentHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/agent-requests")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		var req domain.AgentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := customers.ApplyAsAgent(ctx, &sess.Identity, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, domain.SuccessResponse{Message: "request submitted", ID: req.ID})
	}
}

func getProfileHandler(customers *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/profile")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		user, err := customers.Profile(ctx, sess.Identity.Email)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// updateProfileHandler saves the profile and mirrors name and photo into
// the session identity.
func updateProfileHandler(customers *service.CustomerService, sessions *service.SessionHolder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/me/profile")
		defer span.End()

		sess, ok := caller(w, r)
		if !ok {
			return
		}
		var upd domain.ProfileUpdate
		if !decodeJSON(w, r, &upd) {
			return
		}
		user, err := customers.UpdateProfile(ctx, sess.Identity.Email, &upd)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := sessions.UpdateIdentity(ctx, sess, upd.Name, upd.PhotoURL); err != nil {
			logger.Warn("profile saved but session identity not refreshed", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, user)
	}
}

const defaultMaxUpload = 5 << 20

// uploadImageHandler forwards the multipart "image" field to the image host.
func uploadImageHandler(images port.ImageUploader, maxBytes int64, logger *zap.Logger) http.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/uploads/image")
		defer span.End()

		if images == nil {
			writeError(w, http.StatusServiceUnavailable, "image uploads are not configured")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			writeError(w, http.StatusBadRequest, "image must be a multipart upload under the size limit")
			return
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "image field is required")
			return
		}
		defer file.Close()

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, file); err != nil {
			writeError(w, http.StatusBadRequest, "could not read image")
			return
		}
		span.SetAttributes(attribute.Int("upload.bytes", buf.Len()))

		img, err := images.Upload(ctx, header.Filename, buf.Bytes())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, img)
	}
}
