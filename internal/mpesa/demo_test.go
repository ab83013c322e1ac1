package mpesa

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoGateway_IssuesDistinctCheckoutIDs(t *testing.T) {
	t.Parallel()

	g := NewDemoGateway()
	ctx := context.Background()

	token, err := g.AccessToken(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	first, err := g.STKPush(ctx, token, STKPushRequest{Amount: 500})
	require.NoError(t, err)
	second, err := g.STKPush(ctx, token, STKPushRequest{Amount: 500})
	require.NoError(t, err)

	assert.Equal(t, "0", first.ResponseCode)
	assert.NotEqual(t, first.CheckoutRequestID, second.CheckoutRequestID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(first.Raw, &body))
	assert.Equal(t, first.CheckoutRequestID, body["CheckoutRequestID"])
}

func TestDemoGateway_QueryReportsPaid(t *testing.T) {
	t.Parallel()

	resp, err := NewDemoGateway().QuerySTKPush(context.Background(), "demo-access-token", QueryRequest{CheckoutRequestID: "ws_CO_DEMO_1"})
	require.NoError(t, err)

	assert.Equal(t, "ws_CO_DEMO_1", resp.CheckoutRequestID)
	assert.Equal(t, "0", resp.ResultCode)
	assert.NotEmpty(t, resp.Raw)
}
