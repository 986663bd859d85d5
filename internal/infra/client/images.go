package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ImageHost uploads images to an imgbb-compatible host.
type ImageHost struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewImageHost creates an image host client. Requests to the host never carry
// the caller's identity credential, so httpClient must not use BearerTransport.
func NewImageHost(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *ImageHost {
	return &ImageHost{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

type imgbbResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
		DeleteURL  string `json:"delete_url"`
	} `json:"data"`
}

// Upload sends data as the "image" form field and returns the hosted URLs.
func (h *ImageHost) Upload(ctx context.Context, filename string, data []byte) (*domain.UploadedImage, error) {
	ctx, span := tracer.Start(ctx, "ImageHost.Upload")
	defer span.End()

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	payload := form.Bytes()
	target := h.baseURL + "/1/upload?" + url.Values{"key": {h.apiKey}}.Encode()

	var out imgbbResponse
	_, err = h.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, h.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Content-Type", mw.FormDataContentType())

			resp, err := h.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 {
				raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
				return statusError("image", filename, resp.StatusCode, raw)
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return resilience.Permanent(fmt.Errorf("decode upload response: %w", err))
			}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		if resilience.IsBreakerOpen(err) {
			return nil, &domain.ErrCircuitOpen{Service: "image-host"}
		}
		inner := resilience.Unwrap(err)
		if isDomainError(inner) {
			return nil, inner
		}
		h.logger.Warn("image upload failed", zap.String("filename", filename), zap.Error(err))
		return nil, &domain.ErrExternalService{Service: "image-host", Err: inner}
	}

	if !out.Success || out.Data.URL == "" {
		return nil, &domain.ErrExternalService{Service: "image-host", Err: fmt.Errorf("upload rejected")}
	}
	return &domain.UploadedImage{
		URL:        out.Data.URL,
		DisplayURL: out.Data.DisplayURL,
		DeleteURL:  out.Data.DeleteURL,
	}, nil
}
