package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"studentfees/internal/metrics"
)

const (
	// SandboxBaseURL is the provider's sandbox environment.
	SandboxBaseURL = "https://sandbox.safaricom.co.ke"

	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	stkPath   = "/mpesa/stkpush/v1/processrequest"
	queryPath = "/mpesa/stkpushquery/v1/query"

	tokenTimeout   = 10 * time.Second
	requestTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// ClientConfig holds the provider endpoint and API credentials.
type ClientConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	// Transport is used for outbound calls. nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// Client talks to the provider's OAuth and STK push APIs. Every call is a
// single attempt; retries are left to the caller.
type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
}

// NewClient creates a provider client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = SandboxBaseURL
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		baseURL:        baseURL,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		httpClient:     &http.Client{Transport: transport},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// AccessToken exchanges the consumer key and secret for a bearer token.
func (c *Client) AccessToken(ctx context.Context) (token string, err error) {
	if c.consumerKey == "" || c.consumerSecret == "" {
		return "", fmt.Errorf("%w: consumer key or secret", ErrMissingCredential)
	}

	defer metrics.ObserveProviderCall(metrics.OperationToken, time.Now(), &err)

	ctx, cancel := context.WithTimeout(ctx, tokenTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenFetchFailed, err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	var out tokenResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenFetchFailed, err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token in response", ErrTokenFetchFailed)
	}

	return out.AccessToken, nil
}

// STKPushRequest is the push payment request body.
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is the provider's acknowledgement of a push payment.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`

	// Raw is the response body as received.
	Raw json.RawMessage `json:"-"`
}

// STKPush submits a push payment request.
func (c *Client) STKPush(ctx context.Context, token string, in STKPushRequest) (resp *STKPushResponse, err error) {
	defer metrics.ObserveProviderCall(metrics.OperationSTKPush, time.Now(), &err)

	var out STKPushResponse
	raw, err := c.postJSON(ctx, stkPath, token, in, &out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	out.Raw = raw

	if out.ResponseCode != "" && out.ResponseCode != "0" {
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, &APIError{
			StatusCode:   http.StatusOK,
			ErrorCode:    out.ResponseCode,
			ErrorMessage: out.ResponseDescription,
		})
	}
	if out.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: response has no CheckoutRequestID", ErrSubmissionFailed)
	}

	return &out, nil
}

// QueryRequest asks for the status of a push payment.
type QueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// QueryResponse is the provider's synchronous status answer.
type QueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`

	Raw json.RawMessage `json:"-"`
}

// QuerySTKPush queries the status of a push payment.
func (c *Client) QuerySTKPush(ctx context.Context, token string, in QueryRequest) (resp *QueryResponse, err error) {
	defer metrics.ObserveProviderCall(metrics.OperationQuery, time.Now(), &err)

	var out QueryResponse
	raw, err := c.postJSON(ctx, queryPath, token, in, &out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	out.Raw = raw

	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, in, out any) (json.RawMessage, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var raw json.RawMessage
	if err := c.do(req, &raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return raw, nil
}

// do sends req and decodes a 2xx JSON body into out. Non-2xx responses are
// returned as *APIError.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
