package rpc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(handler func(*http.Request) (*http.Response, error)) *Client {
	client := NewClient("http://rpc.local", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	client.httpClient = &http.Client{
		Transport: roundTripFunc(handler),
	}
	return client
}

func jsonHTTPResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

// resultHandler answers every request with the given raw JSON result and
// hands the decoded request to inspect.
func resultHandler(t *testing.T, result string, inspect func(Request)) func(*http.Request) (*http.Response, error) {
	return func(r *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req Request
		require.NoError(t, json.Unmarshal(body, &req))
		if inspect != nil {
			inspect(req)
		}
		raw, err := json.Marshal(Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(result)})
		require.NoError(t, err)
		return jsonHTTPResponse(http.StatusOK, string(raw)), nil
	}
}

func TestCall_Success(t *testing.T) {
	client := newTestClient(resultHandler(t, `"0x2a"`, func(req Request) {
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, "eth_testMethod", req.Method)
	}))

	result, err := client.call(context.Background(), "eth_testMethod", []interface{}{"p1"})
	require.NoError(t, err)

	var value string
	require.NoError(t, json.Unmarshal(result, &value))
	assert.Equal(t, "0x2a", value)
}

func TestCall_RPCError(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		resp := Response{
			JSONRPC: "2.0",
			ID:      1,
			Error:   &RPCError{Code: 3, Message: "execution reverted", Data: json.RawMessage(`"0x08c379a0"`)},
		}
		rawResp, err := json.Marshal(resp)
		require.NoError(t, err)
		return jsonHTTPResponse(http.StatusOK, string(rawResp)), nil
	})

	_, err := client.call(context.Background(), "eth_call", nil)
	require.Error(t, err)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, 3, rpcErr.Code)
	assert.Contains(t, err.Error(), "execution reverted")
	assert.Contains(t, err.Error(), "0x08c379a0")
}

func TestCall_HTTPError(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return jsonHTTPResponse(http.StatusBadGateway, "bad gateway"), nil
	})

	_, err := client.call(context.Background(), "eth_chainId", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http status 502")
}

func TestCall_RequestIDsIncrease(t *testing.T) {
	var ids []int
	client := newTestClient(resultHandler(t, `"0x1"`, func(req Request) {
		ids = append(ids, req.ID)
	}))

	_, err := client.ChainID(context.Background())
	require.NoError(t, err)
	_, err = client.BlockNumber(context.Background())
	require.NoError(t, err)

	require.Len(t, ids, 2)
	assert.Less(t, ids[0], ids[1])
}

func TestParseHexInt64(t *testing.T) {
	value, err := ParseHexInt64("0x2a")
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)

	zero, err := ParseHexInt64("0x")
	require.NoError(t, err)
	assert.Zero(t, zero)

	_, err = ParseHexInt64("nope")
	require.Error(t, err)

	_, err = ParseHexInt64("  ")
	require.Error(t, err)
}
