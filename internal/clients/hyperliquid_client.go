package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// HyperliquidMainnetURL is the public Hyperliquid API host.
const HyperliquidMainnetURL = "https://api.hyperliquid.xyz"

// NewHyperliquidInfo returns a read-only Hyperliquid info client for candle data.
// The SDK only hands out Info through an Exchange, so the exchange is built with a
// throwaway key that never signs anything.
func NewHyperliquidInfo(baseURL string) (*hyperliquid.Info, error) {
	if baseURL == "" {
		baseURL = HyperliquidMainnetURL
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	pub, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}
	accountAddr := crypto.PubkeyToAddress(*pub).Hex()

	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return ex.Info(), nil
}
