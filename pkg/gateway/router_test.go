package gateway

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest_Valid(t *testing.T) {
	r := NewRPCRouter()

	req, err := r.ParseRequest([]byte(`{"id":"1","method":"tools.list","jsonrpc":"2.0"}`))
	require.NoError(t, err)
	assert.Equal(t, "1", req.ID)
	assert.Equal(t, "tools.list", req.Method)
}

func TestParseRequest_Invalid(t *testing.T) {
	r := NewRPCRouter()

	_, err := r.ParseRequest([]byte(`not json`))
	require.Error(t, err)
	assert.Equal(t, ParseError, err.(*RPCError).Code)

	_, err = r.ParseRequest([]byte(`{"method":"tools.list"}`))
	require.Error(t, err)
	assert.Equal(t, InvalidRequest, err.(*RPCError).Code)

	_, err = r.ParseRequest([]byte(`{"id":"1"}`))
	require.Error(t, err)
	assert.Equal(t, InvalidRequest, err.(*RPCError).Code)
}

func TestRouteRequest_MethodNotFound(t *testing.T) {
	r := NewRPCRouter()

	resp := r.RouteRequest(context.Background(), nil, &RPCRequest{ID: "1", Method: "nope", JSONRPC: "2.0"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)
}

func TestRouteRequest_PreservesTypedErrors(t *testing.T) {
	r := NewRPCRouter()
	require.NoError(t, r.RegisterMethod("fail", func(ctx context.Context, client *Client, params map[string]interface{}) (interface{}, error) {
		return nil, &RPCError{Code: TicketNotFound, Message: "no such ticket"}
	}))

	resp := r.RouteRequest(context.Background(), nil, &RPCRequest{ID: "1", Method: "fail", JSONRPC: "2.0"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, TicketNotFound, resp.Error.Code)
	assert.Equal(t, "no such ticket", resp.Error.Message)
}

func TestRouteRequest_IdempotencyKeyCachesResponse(t *testing.T) {
	r := NewRPCRouter()

	var calls int64
	require.NoError(t, r.RegisterMethod("count", func(ctx context.Context, client *Client, params map[string]interface{}) (interface{}, error) {
		return atomic.AddInt64(&calls, 1), nil
	}))

	first := r.RouteRequest(context.Background(), nil, &RPCRequest{
		ID: "1", Method: "count", JSONRPC: "2.0", IdempotencyKey: "key-a",
	})
	require.Nil(t, first.Error)

	// Retry with a new request ID but the same idempotency key.
	second := r.RouteRequest(context.Background(), nil, &RPCRequest{
		ID: "2", Method: "count", JSONRPC: "2.0", IdempotencyKey: "key-a",
	})
	require.Nil(t, second.Error)

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, "2", second.ID)

	// A different key executes again.
	third := r.RouteRequest(context.Background(), nil, &RPCRequest{
		ID: "3", Method: "count", JSONRPC: "2.0", IdempotencyKey: "key-b",
	})
	require.Nil(t, third.Error)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestRegisterMethod_NilHandler(t *testing.T) {
	r := NewRPCRouter()
	assert.Error(t, r.RegisterMethod("bad", nil))
	assert.False(t, r.HasMethod("bad"))
}
