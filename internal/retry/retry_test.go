package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/emperorhan/restaking-keeper/internal/chain/evm/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify_ExplicitMarkers(t *testing.T) {
	transient := Classify(Transient(errors.New("rpc timed out")))
	assert.Equal(t, ClassTransient, transient.Class)
	assert.Equal(t, "explicit_transient", transient.Reason)

	terminal := Classify(Terminal(errors.New("invalid params")))
	assert.Equal(t, ClassTerminal, terminal.Class)
	assert.Equal(t, "explicit_terminal", terminal.Reason)

	assert.Nil(t, Transient(nil))
	assert.Nil(t, Terminal(nil))
}

func TestClassify_RepresentativeRuntimeErrors(t *testing.T) {
	testCases := []struct {
		name          string
		err           error
		expectedClass Class
		reason        string
	}{
		{
			name:          "nil error terminal",
			err:           nil,
			expectedClass: ClassTerminal,
			reason:        "nil_error",
		},
		{
			name:          "grpc unavailable transient",
			err:           status.Error(codes.Unavailable, "gateway unavailable"),
			expectedClass: ClassTransient,
			reason:        "grpc_unavailable",
		},
		{
			name:          "grpc invalid argument terminal",
			err:           status.Error(codes.InvalidArgument, "bad"),
			expectedClass: ClassTerminal,
			reason:        "grpc_invalidargument",
		},
		{
			name:          "context deadline transient",
			err:           fmt.Errorf("read cooldown: %w", context.DeadlineExceeded),
			expectedClass: ClassTransient,
			reason:        "context_deadline_exceeded",
		},
		{
			name:          "context canceled terminal",
			err:           context.Canceled,
			expectedClass: ClassTerminal,
			reason:        "context_canceled",
		},
		{
			name:          "net timeout transient",
			err:           fmt.Errorf("http request: %w", timeoutErr{}),
			expectedClass: ClassTransient,
			reason:        "net_timeout",
		},
		{
			name:          "jsonrpc internal error transient",
			err:           fmt.Errorf("eth_call: %w", &rpc.RPCError{Code: -32603, Message: "internal error"}),
			expectedClass: ClassTransient,
			reason:        "jsonrpc_server_transient",
		},
		{
			name:          "jsonrpc server range transient",
			err:           &rpc.RPCError{Code: -32000, Message: "header not found"},
			expectedClass: ClassTransient,
			reason:        "jsonrpc_server_range",
		},
		{
			name:          "jsonrpc revert terminal",
			err:           &rpc.RPCError{Code: 3, Message: "execution reverted: cooldown"},
			expectedClass: ClassTerminal,
			reason:        "jsonrpc_message_terminal",
		},
		{
			name:          "jsonrpc invalid params terminal",
			err:           &rpc.RPCError{Code: -32602, Message: "invalid params"},
			expectedClass: ClassTerminal,
			reason:        "jsonrpc_message_terminal",
		},
		{
			name:          "nonce race transient",
			err:           &rpc.RPCError{Code: -32000, Message: "nonce too low"},
			expectedClass: ClassTransient,
			reason:        "nonce_race",
		},
		{
			name:          "http 503 transient",
			err:           errors.New("http status 503: upstream busy"),
			expectedClass: ClassTransient,
			reason:        "message_transient",
		},
		{
			name:          "insufficient funds terminal",
			err:           errors.New("insufficient funds for gas * price + value"),
			expectedClass: ClassTerminal,
			reason:        "message_terminal",
		},
		{
			name:          "unknown defaults terminal",
			err:           errors.New("unexpected failure"),
			expectedClass: ClassTerminal,
			reason:        "unknown_terminal_default",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			decision := Classify(tc.err)
			assert.Equal(t, tc.expectedClass, decision.Class)
			assert.Equal(t, tc.reason, decision.Reason)
		})
	}
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	var retried []int
	p := Policy{
		MaxAttempts: 3,
		OnRetry:     func(attempt int, _ Decision, _ error) { retried = append(retried, attempt) },
		sleepFn:     noSleep,
	}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestPolicy_TerminalReturnsImmediately(t *testing.T) {
	p := Policy{MaxAttempts: 5, sleepFn: noSleep}
	revert := &rpc.RPCError{Code: 3, Message: "execution reverted"}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return revert
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Same(t, revert, err)
}

func TestPolicy_ExhaustedTransientWrapsLastError(t *testing.T) {
	p := Policy{MaxAttempts: 2, sleepFn: noSleep}
	cause := errors.New("http status 429: too many requests")

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return cause
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transient_recovery_exhausted attempts=2")
}

func TestPolicy_StopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, sleepFn: noSleep}

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("timeout")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPolicy_DelayDoublesUpToMax(t *testing.T) {
	p := Policy{BackoffInitial: 100 * time.Millisecond, BackoffMax: 500 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, p.delay(1))
	assert.Equal(t, 200*time.Millisecond, p.delay(2))
	assert.Equal(t, 400*time.Millisecond, p.delay(3))
	assert.Equal(t, 500*time.Millisecond, p.delay(4))
	assert.Equal(t, 500*time.Millisecond, p.delay(10))

	defaults := Policy{}
	assert.Equal(t, defaultBackoffInitial, defaults.delay(1))
	assert.Equal(t, defaultBackoffMax, defaults.delay(20))
}

func TestPolicy_RealSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Policy{}.sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, Policy{}.sleep(context.Background(), 0))
}
