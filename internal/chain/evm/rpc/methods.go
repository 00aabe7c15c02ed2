package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

func (c *Client) ChainID(ctx context.Context) (int64, error) {
	return c.hexQuantity(ctx, "eth_chainId", []interface{}{})
}

func (c *Client) BlockNumber(ctx context.Context) (int64, error) {
	return c.hexQuantity(ctx, "eth_blockNumber", []interface{}{})
}

// Call executes eth_call and returns the decoded return data.
func (c *Client) Call(ctx context.Context, msg CallMsg, blockTag string) ([]byte, error) {
	result, err := c.call(ctx, "eth_call", []interface{}{msg, blockTagOrLatest(blockTag)})
	if err != nil {
		return nil, fmt.Errorf("eth_call(%s): %w", msg.To, err)
	}

	var hexData string
	if err := json.Unmarshal(result, &hexData); err != nil {
		return nil, fmt.Errorf("unmarshal call result: %w", err)
	}
	data, err := hexutil.Decode(normalizeHexData(hexData))
	if err != nil {
		return nil, fmt.Errorf("decode call result: %w", err)
	}
	return data, nil
}

// GetBalance returns the wei balance as a hex quantity string.
func (c *Client) GetBalance(ctx context.Context, address string, blockTag string) (string, error) {
	result, err := c.call(ctx, "eth_getBalance", []interface{}{address, blockTagOrLatest(blockTag)})
	if err != nil {
		return "", fmt.Errorf("eth_getBalance(%s): %w", address, err)
	}

	var balance string
	if err := json.Unmarshal(result, &balance); err != nil {
		return "", fmt.Errorf("unmarshal balance: %w", err)
	}
	return balance, nil
}

func (c *Client) GetTransactionCount(ctx context.Context, address string, blockTag string) (uint64, error) {
	result, err := c.call(ctx, "eth_getTransactionCount", []interface{}{address, blockTagOrLatest(blockTag)})
	if err != nil {
		return 0, fmt.Errorf("eth_getTransactionCount(%s): %w", address, err)
	}

	var hexNonce string
	if err := json.Unmarshal(result, &hexNonce); err != nil {
		return 0, fmt.Errorf("unmarshal nonce: %w", err)
	}
	nonce, err := ParseHexInt64(hexNonce)
	if err != nil {
		return 0, fmt.Errorf("parse nonce: %w", err)
	}
	return uint64(nonce), nil
}

// GasPrice returns the node's suggested legacy gas price as a hex quantity.
func (c *Client) GasPrice(ctx context.Context) (string, error) {
	result, err := c.call(ctx, "eth_gasPrice", []interface{}{})
	if err != nil {
		return "", fmt.Errorf("eth_gasPrice: %w", err)
	}

	var price string
	if err := json.Unmarshal(result, &price); err != nil {
		return "", fmt.Errorf("unmarshal gas price: %w", err)
	}
	return price, nil
}

func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	gas, err := c.hexQuantity(ctx, "eth_estimateGas", []interface{}{msg})
	if err != nil {
		return 0, err
	}
	return uint64(gas), nil
}

// SendRawTransaction broadcasts a signed, RLP/typed-envelope encoded
// transaction and returns its hash.
func (c *Client) SendRawTransaction(ctx context.Context, rawTx string) (string, error) {
	result, err := c.call(ctx, "eth_sendRawTransaction", []interface{}{rawTx})
	if err != nil {
		return "", fmt.Errorf("eth_sendRawTransaction: %w", err)
	}

	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return "", fmt.Errorf("unmarshal tx hash: %w", err)
	}
	return hash, nil
}

func (c *Client) hexQuantity(ctx context.Context, method string, params []interface{}) (int64, error) {
	result, err := c.call(ctx, method, params)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", method, err)
	}

	var hexNum string
	if err := json.Unmarshal(result, &hexNum); err != nil {
		return 0, fmt.Errorf("unmarshal %s result: %w", method, err)
	}

	value, err := ParseHexInt64(hexNum)
	if err != nil {
		return 0, fmt.Errorf("parse %s result: %w", method, err)
	}
	return value, nil
}

func ParseHexInt64(value string) (int64, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	raw = strings.TrimPrefix(strings.ToLower(raw), "0x")
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex %q: %w", value, err)
	}
	return int64(parsed), nil
}

func blockTagOrLatest(tag string) string {
	if strings.TrimSpace(tag) == "" {
		return BlockLatest
	}
	return tag
}

// normalizeHexData maps the "0x" empty-return form to a decodable value.
func normalizeHexData(value string) string {
	if value == "" || value == "0x" {
		return "0x"
	}
	if len(value)%2 != 0 {
		return "0x0" + strings.TrimPrefix(value, "0x")
	}
	return value
}
