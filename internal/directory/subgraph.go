package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/ethereum/go-ethereum/common"
)

const underlyingAssetsQuery = `query UnderlyingAssets($token: String!) {
  liquidRestakingToken(id: $token) {
    underlyingAssets {
      address
      symbol
    }
  }
}`

// Subgraph resolves assets from a protocol subgraph over GraphQL.
// URL may contain "{chainId}", which is replaced per token.
type Subgraph struct {
	url        string
	httpClient *http.Client
}

func NewSubgraph(url string, timeout time.Duration) *Subgraph {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Subgraph{url: url, httpClient: &http.Client{Timeout: timeout}}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type underlyingAssetsResponse struct {
	Data struct {
		LiquidRestakingToken *struct {
			UnderlyingAssets []struct {
				Address string `json:"address"`
				Symbol  string `json:"symbol"`
			} `json:"underlyingAssets"`
		} `json:"liquidRestakingToken"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

func (s *Subgraph) Assets(ctx context.Context, token model.RestakingToken) ([]model.Asset, error) {
	body, err := json.Marshal(graphQLRequest{
		Query: underlyingAssetsQuery,
		// Subgraph entity IDs are lowercase hex.
		Variables: map[string]any{"token": strings.ToLower(token.Coordinator.Hex())},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal subgraph query: %w", err)
	}

	endpoint := strings.ReplaceAll(s.url, "{chainId}", fmt.Sprintf("%d", token.ChainID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create subgraph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subgraph request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read subgraph response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subgraph http status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded underlyingAssetsResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal subgraph response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("subgraph error: %s", decoded.Errors[0].Message)
	}
	if decoded.Data.LiquidRestakingToken == nil {
		return nil, fmt.Errorf("%s not indexed by subgraph: %w", token.Symbol, ErrNoAssets)
	}

	assets := make([]model.Asset, 0, len(decoded.Data.LiquidRestakingToken.UnderlyingAssets))
	for _, a := range decoded.Data.LiquidRestakingToken.UnderlyingAssets {
		if !common.IsHexAddress(a.Address) {
			return nil, fmt.Errorf("subgraph returned invalid asset address %q", a.Address)
		}
		assets = append(assets, model.Asset{
			Address: common.HexToAddress(a.Address),
			Symbol:  a.Symbol,
		})
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("%s: %w", token.Symbol, ErrNoAssets)
	}
	return normalize(token.ChainID, assets), nil
}
