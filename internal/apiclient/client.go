// Package apiclient talks to the remote prediction service. Every method returns a
// *util.DomainError on failure; non-2xx bodies are normalized through ServerError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/telepredict/internal/api/dto"
	"github.com/spec-kit/telepredict/internal/config"
	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/observability"
	"github.com/spec-kit/telepredict/pkg/util"
)

// Messages surfaced when a call cannot produce a server message of its own.
const (
	MsgAuthRequired = "Authentication token not found. Please log in."
	MsgUnreachable  = "Unable to reach the server. Please try again."
	MsgBadResponse  = "Unexpected response from server."
)

// Authorizer supplies the cached outbound Authorization value; "" means anonymous.
type Authorizer interface {
	Authorization() string
}

// Client is the remote service client.
type Client struct {
	baseURL string
	http    *http.Client
	auth    Authorizer
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the traced default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records outbound calls.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a client for cfg.BaseURL.
func New(cfg config.APIConfig, auth Authorizer, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout:   cfg.Timeout(),
			Transport: observability.InstrumentTransport(http.DefaultTransport),
		},
		auth:   auth,
		logger: observability.OrNop(logger).Named("apiclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientLogin authenticates an organization.
func (c *Client) ClientLogin(ctx context.Context, req dto.ClientLoginRequest) (dto.TokenResponse, error) {
	var out dto.TokenResponse
	err := c.doJSON(ctx, "client_login", http.MethodPost, "/api/client/login/", false, req, &out)
	return out, err
}

// StaffLogin authenticates a staff member.
func (c *Client) StaffLogin(ctx context.Context, req dto.StaffLoginRequest) (dto.TokenResponse, error) {
	var out dto.TokenResponse
	err := c.doJSON(ctx, "staff_login", http.MethodPost, "/api/staff/login/", false, req, &out)
	return out, err
}

// Register signs up an organization. It is always sent without credentials.
func (c *Client) Register(ctx context.Context, req dto.ClientRegisterRequest) error {
	return c.doJSON(ctx, "client_register", http.MethodPost, "/api/client/register/", false, req, nil)
}

// AddStaff creates a staff account under the caller's organization.
func (c *Client) AddStaff(ctx context.Context, req dto.AddStaffRequest) (dto.StaffCreatedResponse, error) {
	var out dto.StaffCreatedResponse
	err := c.doJSON(ctx, "add_staff", http.MethodPost, "/api/client/add-staff/", true, req, &out)
	return out, err
}

// Profile fetches the organization dashboard.
func (c *Client) Profile(ctx context.Context) (dto.ProfileResponse, error) {
	var out dto.ProfileResponse
	err := c.doJSON(ctx, "profile", http.MethodGet, "/api/client/profile/", true, nil, &out)
	return out, err
}

// Feedback submits a satisfaction entry.
func (c *Client) Feedback(ctx context.Context, req dto.FeedbackRequest) (dto.FeedbackCreatedResponse, error) {
	var out dto.FeedbackCreatedResponse
	err := c.doJSON(ctx, "feedback", http.MethodPost, "/api/client/feedback/", true, req, &out)
	return out, err
}

// Upload sends a dataset as the multipart field "file".
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (dto.UploadResponse, error) {
	var out dto.UploadResponse
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err == nil {
		_, err = io.Copy(part, content)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return out, util.NewValidationError("could not read the selected file", map[string]any{"filename": filename})
	}

	resp, err := c.send(ctx, "upload", http.MethodPost, "/api/staff/upload/", true, mw.FormDataContentType(), &buf)
	if err != nil {
		return out, err
	}
	return out, c.decode("upload", resp, &out)
}

// Predict runs the model over an uploaded dataset.
func (c *Client) Predict(ctx context.Context, uploadID int) (dto.PredictResponse, error) {
	var out dto.PredictResponse
	err := c.doJSON(ctx, "predict", http.MethodPost, "/api/staff/predict/", true, dto.PredictRequest{UploadID: uploadID}, &out)
	return out, err
}

// Export downloads the processed dataset as CSV bytes.
func (c *Client) Export(ctx context.Context, uploadID int) ([]byte, error) {
	path := "/api/staff/export/" + strconv.Itoa(uploadID) + "/"
	resp, err := c.send(ctx, "export", http.MethodGet, path, true, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordRemoteCall("export", "error")
		return nil, util.NewNetworkError(MsgUnreachable, resp.StatusCode, err)
	}
	c.metrics.RecordRemoteCall("export", "ok")
	return data, nil
}

// History lists the caller's past uploads.
func (c *Client) History(ctx context.Context) ([]domain.HistoryItem, error) {
	var out []domain.HistoryItem
	err := c.doJSON(ctx, "history", http.MethodGet, "/api/staff/history/", true, nil, &out)
	return out, err
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, private bool, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return util.NewInternalError(err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}
	resp, err := c.send(ctx, op, method, path, private, contentType, body)
	if err != nil {
		return err
	}
	return c.decode(op, resp, out)
}

// send performs the request and returns only 2xx responses; the caller closes the body.
func (c *Client) send(ctx context.Context, op, method, path string, private bool, contentType string, body io.Reader) (*http.Response, error) {
	authz := ""
	if private {
		authz = c.authorization()
		if authz == "" {
			c.metrics.RecordRemoteCall(op, "auth_required")
			return nil, util.NewAuthRequired(MsgAuthRequired)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordRemoteCall(op, "transport_error")
		c.logger.Warn("remote call failed", zap.String("operation", op), zap.Error(err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, util.NewNetworkError("Request cancelled.", 0, ctxErr)
		}
		return nil, util.NewNetworkError(MsgUnreachable, 0, err)
	}
	c.logger.Debug("remote call",
		zap.String("operation", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		c.metrics.RecordRemoteCall(op, "status_"+strconv.Itoa(resp.StatusCode))
		return nil, ParseServerError(data).Err(resp.StatusCode, "")
	}
	return resp, nil
}

func (c *Client) decode(op string, resp *http.Response, out any) error {
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.metrics.RecordRemoteCall(op, "ok")
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		c.metrics.RecordRemoteCall(op, "bad_body")
		return util.NewNetworkError(MsgBadResponse, resp.StatusCode, fmt.Errorf("decode %s: %w", op, err))
	}
	c.metrics.RecordRemoteCall(op, "ok")
	return nil
}

func (c *Client) authorization() string {
	if c.auth == nil {
		return ""
	}
	return c.auth.Authorization()
}
