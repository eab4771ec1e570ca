package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"parafeo/signature-portal/signature-backend/pkg/apperrors"
)

// Gateway abstracts the external signing provider. All operations have
// bounded timeouts and return errors instead of panicking across the
// boundary; reminder failures are expected to be swallowed by callers.
type Gateway interface {
	CreateSigningRequest(ctx context.Context, req CreateRequest) (*CreateResult, error)
	CreateEmbeddedSigningRequest(ctx context.Context, req CreateRequest) (*CreateResult, error)
	GetRequestStatus(ctx context.Context, requestID string) (*RequestStatus, error)
	DownloadSignedFile(ctx context.Context, requestID string, dest io.Writer) (int64, error)
	SendReminder(ctx context.Context, requestID, signerEmail string) error
	CancelRequest(ctx context.Context, requestID string) error
	VerifyEventAuthenticity(payload []byte, signature string) bool
}

type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
	TestMode      bool
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// wire shapes of the provider API

type wireFile struct {
	Name    string `json:"name"`
	Content string `json:"content"` // base64
}

type wireCreateRequest struct {
	Title         string     `json:"title"`
	Message       string     `json:"message,omitempty"`
	Files         []wireFile `json:"files"`
	Signers       []Signer   `json:"signers"`
	CorrelationID string     `json:"external_id,omitempty"`
	Embedded      bool       `json:"embedded,omitempty"`
	TestMode      bool       `json:"test_mode,omitempty"`
}

func validateCreateRequest(req CreateRequest) error {
	if len(req.Signers) == 0 {
		return apperrors.Validation("at least one signer is required")
	}
	for i, signer := range req.Signers {
		if signer.Email == "" || signer.FirstName == "" || signer.LastName == "" {
			return apperrors.Validation("signer %d requires email, first name and last name", i)
		}
	}
	if len(req.Files) == 0 {
		return apperrors.Validation("at least one file is required")
	}
	for i, file := range req.Files {
		if len(file.Content) == 0 {
			return apperrors.Validation("file %d (%s) is empty or unreadable", i, file.Name)
		}
	}
	return nil
}

func (c *Client) createRequest(ctx context.Context, req CreateRequest, embedded bool) (*CreateResult, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	wire := wireCreateRequest{
		Title:         req.Title,
		Message:       req.Message,
		Signers:       req.Signers,
		CorrelationID: req.CorrelationID,
		Embedded:      embedded,
		TestMode:      c.cfg.TestMode,
	}
	for _, file := range req.Files {
		wire.Files = append(wire.Files, wireFile{
			Name:    file.Name,
			Content: base64.StdEncoding.EncodeToString(file.Content),
		})
	}

	var result CreateResult
	if err := c.do(ctx, http.MethodPost, "/v1/signature_requests", wire, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreateSigningRequest(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	return c.createRequest(ctx, req, false)
}

// CreateEmbeddedSigningRequest additionally asks the provider for
// short-lived per-signer signing URLs, for ceremonies hosted in our UI.
func (c *Client) CreateEmbeddedSigningRequest(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	return c.createRequest(ctx, req, true)
}

func (c *Client) GetRequestStatus(ctx context.Context, requestID string) (*RequestStatus, error) {
	if requestID == "" {
		return nil, apperrors.Validation("request id is required")
	}
	var status RequestStatus
	if err := c.do(ctx, http.MethodGet, "/v1/signature_requests/"+requestID, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// DownloadSignedFile streams the final signed binary into dest and
// returns the number of bytes written. The caller computes the content
// hash over the result.
func (c *Client) DownloadSignedFile(ctx context.Context, requestID string, dest io.Writer) (int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/v1/signature_requests/"+requestID+"/documents/signed", nil)
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, apperrors.Gateway("signed file download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, apperrors.Gateway(fmt.Sprintf("signed file download returned status %d", resp.StatusCode), nil)
	}

	n, err := io.Copy(dest, resp.Body)
	if err != nil {
		return 0, apperrors.Gateway("signed file write failed", err)
	}
	if n == 0 {
		return 0, apperrors.Gateway("signed file is empty", nil)
	}
	return n, nil
}

func (c *Client) SendReminder(ctx context.Context, requestID, signerEmail string) error {
	body := map[string]string{"signer_email": signerEmail}
	return c.do(ctx, http.MethodPost, "/v1/signature_requests/"+requestID+"/remind", body, nil)
}

func (c *Client) CancelRequest(ctx context.Context, requestID string) error {
	return c.do(ctx, http.MethodPost, "/v1/signature_requests/"+requestID+"/cancel", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return apperrors.Gateway("signing provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Signing provider returned error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return apperrors.Gateway(fmt.Sprintf("signing provider returned status %d", resp.StatusCode), nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.Gateway("failed to decode provider response", err)
		}
	}
	return nil
}
