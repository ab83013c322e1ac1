package mpesa

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// DemoPasskey signs requests in demo mode when no passkey is configured.
const DemoPasskey = "demo-passkey"

// DemoGateway answers token, push and status calls locally with successful
// canned responses. No request leaves the process; callbacks for the issued
// checkout IDs have to be posted by hand.
type DemoGateway struct {
	seq atomic.Int64
	now func() time.Time
}

// NewDemoGateway creates a DemoGateway.
func NewDemoGateway() *DemoGateway {
	return &DemoGateway{now: time.Now}
}

// AccessToken returns a fixed token.
func (g *DemoGateway) AccessToken(ctx context.Context) (string, error) {
	return "demo-access-token", nil
}

// STKPush accepts every request and issues a fresh checkout request ID.
func (g *DemoGateway) STKPush(ctx context.Context, token string, in STKPushRequest) (*STKPushResponse, error) {
	n := g.seq.Add(1)
	resp := &STKPushResponse{
		MerchantRequestID:   fmt.Sprintf("DEMO-%d", n),
		CheckoutRequestID:   fmt.Sprintf("ws_CO_DEMO_%s_%d", Timestamp(g.now()), n),
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	resp.Raw = raw
	return resp, nil
}

// QuerySTKPush reports every checkout request as paid.
func (g *DemoGateway) QuerySTKPush(ctx context.Context, token string, in QueryRequest) (*QueryResponse, error) {
	resp := &QueryResponse{
		ResponseCode:        "0",
		ResponseDescription: "The service request has been accepted successfully",
		CheckoutRequestID:   in.CheckoutRequestID,
		ResultCode:          "0",
		ResultDesc:          "The service request is processed successfully. (demo)",
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	resp.Raw = raw
	return resp, nil
}
