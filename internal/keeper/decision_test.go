package keeper

import (
	"math/big"
	"testing"
	"time"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/stretchr/testify/assert"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestDecide(t *testing.T) {
	window := model.RebalanceWindow{LastRebalancedAt: 1000, CooldownSeconds: 600, BufferSeconds: 30}

	tests := []struct {
		name string
		in   Inputs
		now  int64
		want Decision
	}{
		{
			name: "cooldown active waits out the remainder",
			in:   Inputs{Window: window, SharesOwed: big.NewInt(5)},
			now:  1500,
			want: WaitUntilCooldownElapsed(130 * time.Second),
		},
		{
			name: "buffer still pending after cooldown",
			in:   Inputs{Window: window, SharesOwed: big.NewInt(5)},
			now:  1610,
			want: WaitUntilCooldownElapsed(20 * time.Second),
		},
		{
			name: "shares owed force a rebalance",
			in:   Inputs{Window: window, SharesOwed: big.NewInt(5)},
			now:  1700,
			want: Rebalance(),
		},
		{
			name: "gate opens exactly at ready time",
			in:   Inputs{Window: window, SharesOwed: big.NewInt(1)},
			now:  1630,
			want: Rebalance(),
		},
		{
			name: "native deposit below floor",
			in:   Inputs{Window: window, SharesOwed: big.NewInt(0), DepositBalance: new(big.Int).Sub(ether(32), big.NewInt(1)), IsNative: true},
			now:  1700,
			want: NoActionRetry(300 * time.Second),
		},
		{
			name: "native deposit of 31 ether",
			in:   Inputs{Window: window, SharesOwed: big.NewInt(0), DepositBalance: ether(31), IsNative: true},
			now:  1700,
			want: NoActionRetry(DefaultIdleRetry),
		},
		{
			name: "native deposit at floor",
			in:   Inputs{Window: window, SharesOwed: big.NewInt(0), DepositBalance: ether(32), IsNative: true},
			now:  1700,
			want: Rebalance(),
		},
		{
			name: "erc20 any positive balance",
			in:   Inputs{Window: window, SharesOwed: big.NewInt(0), DepositBalance: big.NewInt(1)},
			now:  1700,
			want: Rebalance(),
		},
		{
			name: "erc20 empty pool",
			in:   Inputs{Window: window, SharesOwed: big.NewInt(0), DepositBalance: big.NewInt(0)},
			now:  1700,
			want: NoActionRetry(DefaultIdleRetry),
		},
		{
			name: "nil amounts count as zero",
			in:   Inputs{Window: window},
			now:  1700,
			want: NoActionRetry(DefaultIdleRetry),
		},
		{
			name: "custom idle retry",
			in:   Inputs{Window: window, DepositBalance: big.NewInt(0), IdleRetry: 90 * time.Second},
			now:  1700,
			want: NoActionRetry(90 * time.Second),
		},
		{
			name: "never rebalanced with zero cooldown",
			in:   Inputs{DepositBalance: big.NewInt(7)},
			now:  1,
			want: Rebalance(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.in, tt.now))
		})
	}
}

func TestDecide_SharesOwedTakePrecedenceOverBalance(t *testing.T) {
	in := Inputs{
		Window:         model.RebalanceWindow{LastRebalancedAt: 0, CooldownSeconds: 10},
		SharesOwed:     big.NewInt(1),
		DepositBalance: big.NewInt(0),
		IsNative:       true,
	}
	assert.Equal(t, ActionRebalance, Decide(in, 100).Action)
}

func TestDecide_NegativeAmountsNeverRebalance(t *testing.T) {
	in := Inputs{SharesOwed: big.NewInt(-1), DepositBalance: big.NewInt(-5)}
	assert.Equal(t, ActionNoAction, Decide(in, 100).Action)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "rebalance", Rebalance().String())
	assert.Equal(t, "wait_cooldown(2m10s)", WaitUntilCooldownElapsed(130*time.Second).String())
	assert.Equal(t, "no_action(5m0s)", NoActionRetry(5*time.Minute).String())
	assert.Equal(t, "unknown", Action(0).String())
}

func TestTiming_WithDefaults(t *testing.T) {
	assert.Equal(t, DefaultTiming(), Timing{}.withDefaults())

	custom := Timing{Buffer: 0, AttemptRetry: 10 * time.Second}.withDefaults()
	assert.Equal(t, time.Duration(0), custom.Buffer)
	assert.Equal(t, 10*time.Second, custom.AttemptRetry)
	assert.Equal(t, DefaultIdleRetry, custom.IdleRetry)
	assert.Equal(t, DefaultCycleTimeout, custom.CycleTimeout)

	negative := Timing{Buffer: -time.Second, IdleRetry: time.Minute}.withDefaults()
	assert.Equal(t, time.Duration(0), negative.Buffer)
	assert.Equal(t, time.Minute, negative.IdleRetry)
}
