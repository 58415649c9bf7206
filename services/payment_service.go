package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// PaymentService charges stored payment instruments through the gateway
// API. It is the engine's only external money call; every request carries a
// client-side timeout on top of the per-call context deadline.
type PaymentService struct {
	baseURL   string
	channel   string
	secret    string
	isTesting bool
	client    *http.Client
}

// NewPaymentService reads gateway credentials from the environment. Set
// PAYGATE_ENV=testing to use the sandbox endpoint.
func NewPaymentService() *PaymentService {
	isTesting := os.Getenv("PAYGATE_ENV") == "testing"

	baseURL := os.Getenv("PAYGATE_API_URL")
	if baseURL == "" {
		baseURL = "https://api.sandbox.paygate.example/v1/"
	}

	channel := os.Getenv("PAYGATE_CHANNEL")
	secret := os.Getenv("PAYGATE_SECRET")

	if channel == "" || secret == "" {
		log.Printf("WARNING: payment gateway credentials not fully configured:")
		if channel == "" {
			log.Printf("  - PAYGATE_CHANNEL is missing")
		}
		if secret == "" {
			log.Printf("  - PAYGATE_SECRET is missing")
		}
		log.Printf("Set these environment variables for card captures to work")
	} else {
		log.Printf("Payment gateway configuration:")
		log.Printf("  Environment: %s", map[bool]string{true: "testing", false: "production"}[isTesting])
		log.Printf("  Base URL: %s", baseURL)
		log.Printf("  Channel: %s", channel)
		log.Printf("  Secret: [CONFIGURED]")
	}

	return &PaymentService{
		baseURL:   baseURL,
		channel:   channel,
		secret:    secret,
		isTesting: isTesting,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewPaymentServiceWithBase is used by tests to point the client at a local
// server.
func NewPaymentServiceWithBase(baseURL string, client *http.Client) *PaymentService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PaymentService{
		baseURL:   baseURL,
		channel:   "test",
		secret:    "test",
		isTesting: true,
		client:    client,
	}
}

func (s *PaymentService) headers() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"channel":      s.channel,
		"secret":       s.secret,
	}
}

// makeRequest performs an HTTP request against the gateway and decodes the
// standard response envelope.
func (s *PaymentService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}) (*models.GatewayResponse, error) {
	if s.channel == "" || s.secret == "" {
		return nil, fmt.Errorf("missing payment gateway credentials: set PAYGATE_CHANNEL and PAYGATE_SECRET")
	}

	url := s.baseURL + endpoint

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range s.headers() {
		req.Header.Set(key, value)
	}

	if s.isTesting || os.Getenv("PAYGATE_DEBUG") == "true" {
		log.Printf("Gateway request: %s %s", method, url)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", models.ErrPaymentTimeout, err)
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if s.isTesting || os.Getenv("PAYGATE_DEBUG") == "true" {
		log.Printf("Gateway response: %s", string(respBody))
	}

	var gwResp models.GatewayResponse
	if err := json.Unmarshal(respBody, &gwResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w\nResponse body: %s", err, string(respBody))
	}

	return &gwResp, nil
}

// Capture charges the business's stored instrument for the requested amount.
// The intent reference is the provider-side idempotency key: resubmitting
// the same reference never charges twice. Declines map to
// models.ErrPaymentDeclined, deadline overruns to models.ErrPaymentTimeout.
func (s *PaymentService) Capture(ctx context.Context, req models.CaptureRequest) (*models.CaptureResult, error) {
	resp, err := s.makeRequest(ctx, "POST", "payment/capture", req)
	if err != nil {
		return nil, err
	}

	if !resp.Status {
		detail := gatewayErrorDetail(resp)
		return &models.CaptureResult{Approved: false, Detail: detail},
			fmt.Errorf("%w: %s", models.ErrPaymentDeclined, detail)
	}

	captureRef, _ := resp.Data["captureRef"].(string)
	if captureRef == "" {
		return nil, fmt.Errorf("gateway approved capture %s without a capture reference", req.IntentRef)
	}

	return &models.CaptureResult{Approved: true, CaptureRef: captureRef}, nil
}

// AccountBalance returns the platform's gateway account balance, used by
// operational dashboards.
func (s *PaymentService) AccountBalance(ctx context.Context) (int64, error) {
	resp, err := s.makeRequest(ctx, "GET", "payment/account/balance", nil)
	if err != nil {
		return 0, err
	}
	if balance, ok := resp.Data["balanceCents"].(float64); ok {
		return int64(balance), nil
	}
	return 0, fmt.Errorf("failed to parse balance from response")
}

// gatewayErrorDetail extracts a human-readable message from a failed
// gateway envelope.
func gatewayErrorDetail(resp *models.GatewayResponse) string {
	code := "unknown"
	if resp.Code != nil {
		if codeStr, ok := resp.Code.(string); ok {
			code = codeStr
		} else {
			code = fmt.Sprintf("%v", resp.Code)
		}
	}

	if resp.Dialog != nil {
		if dialogMap, ok := resp.Dialog.(map[string]interface{}); ok {
			if msg, ok := dialogMap["message"].(string); ok {
				return fmt.Sprintf("%s - %s", code, msg)
			}
		}
	}
	return code
}
