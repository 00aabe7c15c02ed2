package alert

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAlert() Alert {
	return Alert{
		Type:    AlertTypeUnhealthy,
		Chain:   "holesky",
		Token:   "reETH",
		Asset:   "cbETH",
		Title:   "Scheduler unhealthy",
		Message: "5 consecutive failed cycles",
		Fields: map[string]string{
			"last_error": "execution reverted",
			"next_check": "60s",
		},
	}
}

func countingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestMultiAlerter_Send_AllChannels(t *testing.T) {
	slackSrv, slackReceived := countingServer(t, http.StatusOK)
	webhookSrv, webhookReceived := countingServer(t, http.StatusOK)

	multi := NewMultiAlerter(time.Hour, testLogger(), NewSlackAlerter(slackSrv.URL), NewWebhookAlerter(webhookSrv.URL))
	assert.Equal(t, 2, multi.Channels())

	require.NoError(t, multi.Send(context.Background(), testAlert()))
	assert.Equal(t, int32(1), slackReceived.Load())
	assert.Equal(t, int32(1), webhookReceived.Load())
}

func TestMultiAlerter_CooldownPerSubject(t *testing.T) {
	srv, received := countingServer(t, http.StatusOK)
	multi := NewMultiAlerter(time.Minute, testLogger(), NewWebhookAlerter(srv.URL))

	now := time.Unix(1_700_000_000, 0)
	multi.nowFn = func() time.Time { return now }

	a := testAlert()
	require.NoError(t, multi.Send(context.Background(), a))
	require.NoError(t, multi.Send(context.Background(), a))
	assert.Equal(t, int32(1), received.Load(), "repeat within cooldown is suppressed")

	other := a
	other.Asset = "ETH"
	require.NoError(t, multi.Send(context.Background(), other))
	assert.Equal(t, int32(2), received.Load(), "different asset has its own cooldown")

	recovery := a
	recovery.Type = AlertTypeRecovery
	require.NoError(t, multi.Send(context.Background(), recovery))
	assert.Equal(t, int32(3), received.Load(), "different type has its own cooldown")

	now = now.Add(time.Minute)
	require.NoError(t, multi.Send(context.Background(), a))
	assert.Equal(t, int32(4), received.Load(), "sent again once cooldown expires")
}

func TestMultiAlerter_PartialFailure(t *testing.T) {
	failSrv, _ := countingServer(t, http.StatusInternalServerError)
	goodSrv, goodReceived := countingServer(t, http.StatusOK)

	multi := NewMultiAlerter(time.Hour, testLogger(), NewWebhookAlerter(failSrv.URL), NewWebhookAlerter(goodSrv.URL))

	err := multi.Send(context.Background(), testAlert())
	assert.Error(t, err)
	assert.Equal(t, int32(1), goodReceived.Load())
}

func TestSlackAlerter_PayloadFormat(t *testing.T) {
	var capturedBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := testAlert()
	a.Type = AlertTypeRebalanceError
	require.NoError(t, NewSlackAlerter(srv.URL).Send(context.Background(), a))

	var payload map[string]string
	require.NoError(t, json.Unmarshal(capturedBody, &payload))
	text := payload["text"]

	assert.Contains(t, text, ":rotating_light:")
	assert.Contains(t, text, "[REBALANCE_FAILED]")
	assert.Contains(t, text, "holesky/reETH/cbETH")
	assert.Contains(t, text, "Scheduler unhealthy")
	assert.Less(t, strings.Index(text, "last_error"), strings.Index(text, "next_check"), "fields are sorted")

	emojiTests := []struct {
		alertType AlertType
		emoji     string
	}{
		{AlertTypeUnhealthy, ":warning:"},
		{AlertTypeRecovery, ":white_check_mark:"},
		{AlertTypePairSkipped, ":no_entry:"},
	}
	for _, tc := range emojiTests {
		a.Type = tc.alertType
		require.NoError(t, NewSlackAlerter(srv.URL).Send(context.Background(), a))
		require.NoError(t, json.Unmarshal(capturedBody, &payload))
		assert.Contains(t, payload["text"], tc.emoji, string(tc.alertType))
	}
}

func TestWebhookAlerter_PayloadFormat(t *testing.T) {
	var capturedBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		capturedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhookAlerter(srv.URL).Send(context.Background(), testAlert()))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(capturedBody, &payload))
	assert.Equal(t, "UNHEALTHY", payload["type"])
	assert.Equal(t, "holesky", payload["chain"])
	assert.Equal(t, "reETH", payload["token"])
	assert.Equal(t, "cbETH", payload["asset"])
	assert.NotEmpty(t, payload["time"])
}

func TestSubject_OmitsEmptyParts(t *testing.T) {
	assert.Equal(t, "holesky/reETH", Alert{Chain: "holesky", Token: "reETH"}.subject())
	assert.Equal(t, "holesky", Alert{Chain: "holesky"}.subject())
}

func TestNoopAlerter(t *testing.T) {
	assert.NoError(t, (&NoopAlerter{}).Send(context.Background(), testAlert()))
}
