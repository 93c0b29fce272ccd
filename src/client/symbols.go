package client

import (
	"context"

	"tradeapi-connector/src/convert"
	"tradeapi-connector/src/tradeapi"

	"google.golang.org/protobuf/proto"
)

// loadReferenceData fetches the exchange and asset lists. Missing schema
// entries or failed calls leave the lists empty.
func (c *Client) loadReferenceData(ctx context.Context) {
	exchanges := c.fetch(ctx, tradeapi.MethodExchanges, tradeapi.ExchangesRequest, tradeapi.ExchangesResponse)
	assets := c.fetch(ctx, tradeapi.MethodAssets, tradeapi.AssetsRequest, tradeapi.AssetsResponse)

	c.refMu.Lock()
	c.exchanges = exchanges
	c.assets = assets
	c.refMu.Unlock()

	c.logger.Info("reference data: %d exchange(s), %d asset(s)", len(tradeapi.List(exchanges, "exchanges")), len(tradeapi.List(assets, "assets")))
}

func (c *Client) fetch(ctx context.Context, method, request, response string) proto.Message {
	if !c.schema.Has(request) || !c.schema.Has(response) {
		c.logger.Debug("skipping %s: not in the schema", method)
		return nil
	}
	resp, err := c.CallByName(ctx, method, request, nil, response)
	if err != nil {
		c.logger.Warning("skipping %s: %v", method, err)
		return nil
	}
	return resp
}

// RefreshReferenceData reloads exchanges and assets.
func (c *Client) RefreshReferenceData(ctx context.Context) {
	c.loadReferenceData(ctx)
}

// Exchanges returns the cached exchange list.
func (c *Client) Exchanges() []proto.Message {
	c.refMu.RLock()
	defer c.refMu.RUnlock()
	return tradeapi.List(c.exchanges, "exchanges")
}

// Assets returns the cached asset list.
func (c *Client) Assets() []proto.Message {
	c.refMu.RLock()
	defer c.refMu.RUnlock()
	return tradeapi.List(c.assets, "assets")
}

// -----------------------------------------------------------------------------

// SymbolInfo returns the asset specification of ticker on mic, or nil when the
// broker does not know it. Lookup failures are not logged.
func (c *Client) SymbolInfo(ctx context.Context, ticker, mic string) proto.Message {
	fields := map[string]any{"symbol": convert.Symbol(ticker, mic)}
	if accounts := c.AccountIDs(); len(accounts) > 0 {
		fields["account_id"] = accounts[0]
	}
	resp, err := c.CallByName(ctx, tradeapi.MethodGetAsset, tradeapi.GetAssetRequest, fields, tradeapi.GetAssetResponse)
	if err != nil {
		c.logger.Debug("symbol info for %s@%s: %v", ticker, mic, err)
		return nil
	}
	return resp
}

// ResolveDataname turns "<board>.<ticker>" or a bare ticker into the broker
// board and ticker. ok is false when the board cannot be determined.
func (c *Client) ResolveDataname(ctx context.Context, dataname string) (board, ticker string, ok bool) {
	if board, ticker, ok := convert.SplitDataname(dataname); ok {
		return board, ticker, true
	}

	ticker = dataname
	mic := ""
	for _, asset := range c.Assets() {
		if tradeapi.String(asset, "ticker") == ticker {
			mic = tradeapi.String(asset, "mic")
			break
		}
	}
	if mic == "" {
		return "", ticker, false
	}

	info := c.SymbolInfo(ctx, ticker, mic)
	board = tradeapi.String(info, "board")
	return board, ticker, board != ""
}

// Dataname is the inverse of ResolveDataname.
func (c *Client) Dataname(board, ticker string) string {
	return convert.Dataname(board, ticker)
}

// MIC finds the exchange on which ticker trades on board by probing each
// known exchange.
func (c *Client) MIC(ctx context.Context, board, ticker string) (string, bool) {
	for _, exchange := range c.Exchanges() {
		mic := tradeapi.String(exchange, "mic")
		info := c.SymbolInfo(ctx, ticker, mic)
		if info != nil && tradeapi.String(info, "board") == board {
			return mic, true
		}
	}
	return "", false
}

// Symbol resolves a dataname into the broker symbol "ticker@mic".
func (c *Client) Symbol(ctx context.Context, dataname string) (string, bool) {
	board, ticker, ok := c.ResolveDataname(ctx, dataname)
	if !ok {
		return "", false
	}
	mic, ok := c.MIC(ctx, board, ticker)
	if !ok {
		return "", false
	}
	return convert.Symbol(ticker, mic), true
}
