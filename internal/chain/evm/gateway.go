package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/emperorhan/restaking-keeper/internal/cache"
	"github.com/emperorhan/restaking-keeper/internal/chain"
	"github.com/emperorhan/restaking-keeper/internal/chain/evm/rpc"
	"github.com/emperorhan/restaking-keeper/internal/chain/ratelimit"
	"github.com/emperorhan/restaking-keeper/internal/circuitbreaker"
	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/emperorhan/restaking-keeper/internal/metrics"
	"github.com/emperorhan/restaking-keeper/internal/retry"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	defaultGasBufferPercent = 20
	erc20HandleCapacity     = 256
	cooldownCacheCapacity   = 64
)

// Config configures one chain's gateway.
type Config struct {
	ChainID    model.ChainID
	RPCURL     string
	SigningKey string
	RPCTimeout time.Duration

	RPS   float64
	Burst int

	ReadAttempts       int
	BreakerFailures    int
	BreakerOpenTimeout time.Duration

	// CooldownTTL bounds how long a coordinator's rebalanceDelay is reused.
	// Zero keeps it for the process lifetime.
	CooldownTTL time.Duration

	GasBufferPercent int
}

// Gateway implements chain.Gateway over Ethereum JSON-RPC. Reads are rate
// limited, guarded by a circuit breaker and retried on transient failures.
// Writes are serialised per signer and never retried.
type Gateway struct {
	chainID model.ChainID
	label   string
	client  rpc.RPCClient
	signer  *Signer
	logger  *slog.Logger

	limiter *ratelimit.Limiter
	breaker *circuitbreaker.Breaker
	reads   retry.Policy

	gasBufferPercent int

	cooldowns *cache.LRU[common.Address, int64]
	erc20     *cache.LRU[common.Address, *ERC20]

	sendMu sync.Mutex
}

var _ chain.Gateway = (*Gateway)(nil)

// Dial builds a gateway and checks that the endpoint serves cfg.ChainID.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Gateway, error) {
	client := rpc.NewClient(cfg.RPCURL, cfg.RPCTimeout, logger)
	g, err := NewGateway(client, cfg, logger)
	if err != nil {
		return nil, err
	}

	remote, err := client.ChainID(ctx)
	if err != nil {
		return nil, &chain.CallError{Op: "eth_chainId", Err: err}
	}
	if model.ChainID(remote) != cfg.ChainID {
		return nil, fmt.Errorf("rpc endpoint serves chain %d, configured %d", remote, cfg.ChainID)
	}
	return g, nil
}

// NewGateway wraps an existing RPC client. A blank signing key yields a
// read-only gateway whose SubmitRebalance fails with ErrNoSigner.
func NewGateway(client rpc.RPCClient, cfg Config, logger *slog.Logger) (*Gateway, error) {
	label := cfg.ChainID.Label()

	var signer *Signer
	if cfg.SigningKey != "" {
		s, err := NewSigner(cfg.SigningKey)
		if err != nil {
			return nil, err
		}
		signer = s
	}

	gasBuffer := cfg.GasBufferPercent
	if gasBuffer <= 0 {
		gasBuffer = defaultGasBufferPercent
	}

	g := &Gateway{
		chainID:          cfg.ChainID,
		label:            label,
		client:           client,
		signer:           signer,
		logger:           logger.With("component", "evm_gateway", "chain", label),
		limiter:          ratelimit.NewLimiter(cfg.RPS, cfg.Burst, label),
		reads:            retry.Policy{MaxAttempts: cfg.ReadAttempts},
		gasBufferPercent: gasBuffer,
		cooldowns:        cache.NewLRU[common.Address, int64](cooldownCacheCapacity, cfg.CooldownTTL),
		erc20:            cache.NewLRU[common.Address, *ERC20](erc20HandleCapacity, 0),
	}
	g.breaker = circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailures,
		OpenTimeout:      cfg.BreakerOpenTimeout,
		IsFailure:        func(err error) bool { return retry.Classify(err).IsTransient() },
		OnStateChange: func(from, to circuitbreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(label).Set(float64(to))
			g.logger.Warn("rpc circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(label).Set(float64(circuitbreaker.StateClosed))

	if signer != nil {
		g.logger.Info("gateway ready", "signer", signer.Address().Hex())
	} else {
		g.logger.Info("gateway ready (read-only)")
	}
	return g, nil
}

func (g *Gateway) ChainID() model.ChainID {
	return g.chainID
}

// SignerAddress returns the transaction sender, or the zero address for a
// read-only gateway.
func (g *Gateway) SignerAddress() common.Address {
	if g.signer == nil {
		return common.Address{}
	}
	return g.signer.Address()
}

func (g *Gateway) LastRebalancedAt(ctx context.Context, token model.RestakingToken, asset model.Asset) (int64, error) {
	v, err := g.callUint(ctx, coordinatorABI, token.Coordinator, "assetLastRebalancedAt", asset.Address)
	if err != nil {
		return 0, chain.NewCallError("assetLastRebalancedAt", token, &asset, err)
	}
	if !v.IsInt64() {
		return 0, chain.NewCallError("assetLastRebalancedAt", token, &asset, fmt.Errorf("timestamp %s overflows int64", v))
	}
	return v.Int64(), nil
}

func (g *Gateway) RebalanceCooldown(ctx context.Context, token model.RestakingToken) (int64, error) {
	seconds, err := g.cooldowns.GetOrLoad(ctx, token.Coordinator, func(ctx context.Context) (int64, error) {
		v, err := g.callUint(ctx, coordinatorABI, token.Coordinator, "rebalanceDelay")
		if err != nil {
			return 0, err
		}
		if !v.IsInt64() {
			return 0, fmt.Errorf("delay %s overflows int64", v)
		}
		return v.Int64(), nil
	})
	if err != nil {
		return 0, chain.NewCallError("rebalanceDelay", token, nil, err)
	}
	return seconds, nil
}

func (g *Gateway) SharesOwedInCurrentEpoch(ctx context.Context, token model.RestakingToken, asset model.Asset) (*big.Int, error) {
	v, err := g.callUint(ctx, withdrawalQueueABI, token.WithdrawalQueue, "getSharesOwedInCurrentEpoch", asset.Address)
	if err != nil {
		return nil, chain.NewCallError("getSharesOwedInCurrentEpoch", token, &asset, err)
	}
	return v, nil
}

func (g *Gateway) DepositPoolBalance(ctx context.Context, token model.RestakingToken, asset model.Asset) (*big.Int, error) {
	if asset.IsNative() {
		var hexBalance string
		err := g.read(ctx, "eth_getBalance", func(ctx context.Context) error {
			var err error
			hexBalance, err = g.client.GetBalance(ctx, token.DepositPool.Hex(), rpc.BlockLatest)
			return err
		})
		if err != nil {
			return nil, chain.NewCallError("eth_getBalance", token, &asset, err)
		}
		balance, err := hexutil.DecodeBig(hexBalance)
		if err != nil {
			return nil, chain.NewCallError("eth_getBalance", token, &asset, fmt.Errorf("decode balance %q: %w", hexBalance, err))
		}
		return balance, nil
	}

	handle := g.erc20Handle(asset.Address)
	input, err := handle.balanceOfInput(token.DepositPool)
	if err != nil {
		return nil, chain.NewCallError("balanceOf", token, &asset, err)
	}
	output, err := g.ethCall(ctx, handle.Address, input)
	if err != nil {
		return nil, chain.NewCallError("balanceOf", token, &asset, err)
	}
	balance, err := unpackUint256(erc20ABI, "balanceOf", output)
	if err != nil {
		return nil, chain.NewCallError("balanceOf", token, &asset, err)
	}
	return balance, nil
}

// SubmitRebalance simulates rebalance(asset) from the signer and broadcasts
// it when the simulation passes. A revert in simulation is returned without
// sending anything.
func (g *Gateway) SubmitRebalance(ctx context.Context, token model.RestakingToken, asset model.Asset) (string, error) {
	if g.signer == nil {
		return "", chain.NewCallError("rebalance", token, &asset, ErrNoSigner)
	}
	input, err := coordinatorABI.Pack("rebalance", asset.Address)
	if err != nil {
		return "", chain.NewCallError("rebalance", token, &asset, err)
	}

	from := g.signer.Address()
	msg := rpc.CallMsg{
		From: from.Hex(),
		To:   token.Coordinator.Hex(),
		Data: hexutil.Encode(input),
	}

	g.sendMu.Lock()
	defer g.sendMu.Unlock()

	if err := g.invoke(ctx, "eth_call", func(ctx context.Context) error {
		_, err := g.client.Call(ctx, msg, rpc.BlockPending)
		return err
	}); err != nil {
		return "", chain.NewCallError("simulate rebalance", token, &asset, err)
	}

	var gas uint64
	if err := g.invoke(ctx, "eth_estimateGas", func(ctx context.Context) error {
		var err error
		gas, err = g.client.EstimateGas(ctx, msg)
		return err
	}); err != nil {
		return "", chain.NewCallError("estimate rebalance gas", token, &asset, err)
	}
	gas += gas * uint64(g.gasBufferPercent) / 100

	var nonce uint64
	if err := g.invoke(ctx, "eth_getTransactionCount", func(ctx context.Context) error {
		var err error
		nonce, err = g.client.GetTransactionCount(ctx, from.Hex(), rpc.BlockPending)
		return err
	}); err != nil {
		return "", chain.NewCallError("signer nonce", token, &asset, err)
	}

	var gasPriceHex string
	if err := g.invoke(ctx, "eth_gasPrice", func(ctx context.Context) error {
		var err error
		gasPriceHex, err = g.client.GasPrice(ctx)
		return err
	}); err != nil {
		return "", chain.NewCallError("gas price", token, &asset, err)
	}
	gasPrice, err := hexutil.DecodeBig(gasPriceHex)
	if err != nil {
		return "", chain.NewCallError("gas price", token, &asset, fmt.Errorf("decode %q: %w", gasPriceHex, err))
	}

	raw, hash, err := g.signer.sign(big.NewInt(int64(g.chainID)), legacyTx{
		nonce:    nonce,
		to:       token.Coordinator,
		gas:      gas,
		gasPrice: gasPrice,
		data:     input,
	})
	if err != nil {
		return "", chain.NewCallError("rebalance", token, &asset, err)
	}

	var sent string
	if err := g.invoke(ctx, "eth_sendRawTransaction", func(ctx context.Context) error {
		var err error
		sent, err = g.client.SendRawTransaction(ctx, raw)
		return err
	}); err != nil {
		return "", chain.NewCallError("rebalance", token, &asset, err)
	}
	if sent == "" {
		sent = hash.Hex()
	}

	g.logger.Info("rebalance broadcast",
		"token", token.Symbol,
		"asset", asset.String(),
		"tx_hash", sent,
		"nonce", nonce,
		"gas", gas,
	)
	return sent, nil
}

func (g *Gateway) erc20Handle(address common.Address) *ERC20 {
	if h, ok := g.erc20.Get(address); ok {
		return h
	}
	h := &ERC20{Address: address}
	g.erc20.Put(address, h)
	return h
}

func (g *Gateway) callUint(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (*big.Int, error) {
	input, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	output, err := g.ethCall(ctx, to, input)
	if err != nil {
		return nil, err
	}
	return unpackUint256(contract, method, output)
}

func (g *Gateway) ethCall(ctx context.Context, to common.Address, input []byte) ([]byte, error) {
	msg := rpc.CallMsg{To: to.Hex(), Data: hexutil.Encode(input)}
	var output []byte
	err := g.read(ctx, "eth_call", func(ctx context.Context) error {
		var err error
		output, err = g.client.Call(ctx, msg, rpc.BlockLatest)
		return err
	})
	return output, err
}

// read runs one idempotent RPC with transient-failure retries.
func (g *Gateway) read(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	policy := g.reads
	policy.OnRetry = func(attempt int, decision retry.Decision, err error) {
		metrics.RPCReadRetries.WithLabelValues(g.label, method).Inc()
		g.logger.Debug("retrying rpc read", "method", method, "attempt", attempt, "reason", decision.Reason, "error", err)
	}
	return policy.Do(ctx, func(ctx context.Context) error {
		return g.invoke(ctx, method, fn)
	})
}

// invoke runs a single RPC through the limiter and breaker.
func (g *Gateway) invoke(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	err := g.breaker.Do(ctx, fn)
	ratelimit.RecordRPCCall(g.label, method, err)
	return err
}
