// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package chain is a minimal substrate JSON-RPC client over a websocket. It
// provides the total issuance subscription used by the referendum estimator:
//
//	c := chain.NewClient("wss://rpc.polkadot.io")
//	go func() {
//		if err := c.Connect(ctx); err != nil {
//			slog.Error("chain connect failed", "error", err)
//			c.Redial()
//		}
//	}()
//
// Client satisfies referendum.IssuanceSource. After a dropped connection it
// redials with backoff and re-issues live subscriptions until Close.
package chain
