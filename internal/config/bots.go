package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type botsFile struct {
	Bots []botEntry `yaml:"bots"`
}

type botEntry struct {
	Name       string       `yaml:"name"`
	ChainID    int64        `yaml:"chain_id"`
	RPCURL     string       `yaml:"rpc_url"`
	SigningKey string       `yaml:"signing_key"`
	Enabled    *bool        `yaml:"enabled"`
	Tokens     []tokenEntry `yaml:"tokens"`
}

type tokenEntry struct {
	Symbol          string       `yaml:"symbol"`
	Coordinator     string       `yaml:"coordinator"`
	WithdrawalQueue string       `yaml:"withdrawal_queue"`
	DepositPool     string       `yaml:"deposit_pool"`
	Assets          []assetEntry `yaml:"assets"`
}

type assetEntry struct {
	Symbol  string `yaml:"symbol"`
	Address string `yaml:"address"`
}

// LoadBots reads bot definitions from a YAML file. ${VAR} references are
// expanded from the environment before parsing, so keys and endpoints can
// stay out of the file.
func LoadBots(path string) ([]model.Bot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bot config: %w", err)
	}
	return ParseBots(data)
}

// ParseBots decodes bot definitions. Only a malformed document is an error:
// an entry that fails validation is returned with ConfigErr set on the bot
// or on the offending token, so the remaining entries can still run.
func ParseBots(data []byte) ([]model.Bot, error) {
	var file botsFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("parse bot config: %w", err)
	}

	bots := make([]model.Bot, 0, len(file.Bots))
	names := make(map[string]struct{}, len(file.Bots))
	for i, entry := range file.Bots {
		bot := entry.toModel()
		if bot.ConfigErr == nil {
			if _, dup := names[bot.Name]; dup {
				bot.ConfigErr = fmt.Errorf("duplicate name %q", bot.Name)
			}
			names[bot.Name] = struct{}{}
		}
		if bot.ConfigErr != nil {
			bot.ConfigErr = fmt.Errorf("bots[%d] %q: %w", i, entry.Name, bot.ConfigErr)
		}
		bots = append(bots, bot)
	}
	return bots, nil
}

// InvalidEntries lists the config errors carried by bots and their tokens.
func InvalidEntries(bots []model.Bot) []error {
	var errs []error
	for _, bot := range bots {
		if bot.ConfigErr != nil {
			errs = append(errs, bot.ConfigErr)
			continue
		}
		for _, token := range bot.Tokens {
			if token.ConfigErr != nil {
				errs = append(errs, fmt.Errorf("bot %q: %w", bot.Name, token.ConfigErr))
			}
		}
	}
	return errs
}

func (e botEntry) toModel() model.Bot {
	bot := model.Bot{
		Name:       strings.TrimSpace(e.Name),
		ChainID:    model.ChainID(e.ChainID),
		RPCURL:     strings.TrimSpace(e.RPCURL),
		SigningKey: strings.TrimSpace(e.SigningKey),
		Enabled:    e.Enabled == nil || *e.Enabled,
	}

	var errs []error
	if bot.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if bot.ChainID <= 0 {
		errs = append(errs, errors.New("chain_id must be positive"))
	}
	if bot.Enabled {
		if bot.RPCURL == "" {
			errs = append(errs, errors.New("rpc_url is required"))
		}
		if bot.SigningKey == "" {
			errs = append(errs, errors.New("signing_key is required"))
		}
	}
	if len(e.Tokens) == 0 {
		errs = append(errs, errors.New("at least one token is required"))
	}
	bot.ConfigErr = errors.Join(errs...)

	for j, t := range e.Tokens {
		token := t.toModel(bot.ChainID)
		if token.ConfigErr != nil {
			token.ConfigErr = fmt.Errorf("tokens[%d] %q: %w", j, t.Symbol, token.ConfigErr)
		}
		bot.Tokens = append(bot.Tokens, token)
	}
	return bot
}

func (t tokenEntry) toModel(chainID model.ChainID) model.RestakingToken {
	token := model.RestakingToken{
		Symbol:  strings.TrimSpace(t.Symbol),
		ChainID: chainID,
	}
	token.ConfigErr = t.fill(&token)
	return token
}

func (t tokenEntry) fill(token *model.RestakingToken) error {
	if token.Symbol == "" {
		return errors.New("symbol is required")
	}

	var err error
	if token.Coordinator, err = parseAddress("coordinator", t.Coordinator); err != nil {
		return err
	}
	if token.WithdrawalQueue, err = parseAddress("withdrawal_queue", t.WithdrawalQueue); err != nil {
		return err
	}
	if token.DepositPool, err = parseAddress("deposit_pool", t.DepositPool); err != nil {
		return err
	}

	for k, a := range t.Assets {
		addr, err := parseAddress(fmt.Sprintf("assets[%d].address", k), a.Address)
		if err != nil {
			return err
		}
		token.Assets = append(token.Assets, model.Asset{
			Address: addr,
			Symbol:  strings.TrimSpace(a.Symbol),
			ChainID: token.ChainID,
		})
	}
	return nil
}

func parseAddress(field, v string) (common.Address, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return common.Address{}, fmt.Errorf("%s is required", field)
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%s %q is not a hex address", field, v)
	}
	return common.HexToAddress(v), nil
}
