package keeper

import (
	"fmt"
	"math/big"
	"time"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
)

// Action is what a scheduler does with one cycle's on-chain state.
type Action int

const (
	ActionRebalance Action = iota + 1
	ActionWaitCooldown
	ActionNoAction
)

func (a Action) String() string {
	switch a {
	case ActionRebalance:
		return "rebalance"
	case ActionWaitCooldown:
		return "wait_cooldown"
	case ActionNoAction:
		return "no_action"
	default:
		return "unknown"
	}
}

// Decision is produced once per cycle. Delay is set for the two waiting
// actions and is the time until the next check.
type Decision struct {
	Action Action
	Delay  time.Duration
}

func Rebalance() Decision {
	return Decision{Action: ActionRebalance}
}

func WaitUntilCooldownElapsed(d time.Duration) Decision {
	return Decision{Action: ActionWaitCooldown, Delay: d}
}

func NoActionRetry(d time.Duration) Decision {
	return Decision{Action: ActionNoAction, Delay: d}
}

func (d Decision) String() string {
	if d.Action == ActionRebalance {
		return d.Action.String()
	}
	return fmt.Sprintf("%s(%s)", d.Action, d.Delay)
}

// Inputs is the on-chain state a decision is made from. SharesOwed and
// DepositBalance may be nil when they were not read; nil counts as zero.
type Inputs struct {
	Window         model.RebalanceWindow
	SharesOwed     *big.Int
	DepositBalance *big.Int
	IsNative       bool

	// IdleRetry is the delay returned when there is nothing to do.
	// Zero means DefaultIdleRetry.
	IdleRetry time.Duration
}

// Decide applies the rebalance rules in order:
//
//  1. the cooldown (plus buffer) must have elapsed, otherwise wait it out;
//  2. any shares owed to the withdrawal queue force a rebalance;
//  3. a deposit pool holding at least one validator stake (native) or any
//     balance (ERC20) triggers a rebalance;
//  4. otherwise check again after IdleRetry.
func Decide(in Inputs, now int64) Decision {
	if remaining := in.Window.Remaining(now); remaining > 0 {
		return WaitUntilCooldownElapsed(remaining)
	}

	if positive(in.SharesOwed) {
		return Rebalance()
	}

	if in.DepositBalance != nil {
		if in.IsNative {
			if in.DepositBalance.Cmp(model.NativeDepositFloor) >= 0 {
				return Rebalance()
			}
		} else if in.DepositBalance.Sign() > 0 {
			return Rebalance()
		}
	}

	idle := in.IdleRetry
	if idle <= 0 {
		idle = DefaultIdleRetry
	}
	return NoActionRetry(idle)
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
