package domain

import "fmt"

// Credentials identify the trading account and the key that signs on its behalf.
// Loaded once at startup and never mutated.
type Credentials struct {
	// AccountAddress is the user (main wallet) address.
	AccountAddress string
	// SignerAddress is the API wallet address allowed to sign for the account.
	SignerAddress string
	// PrivateKey is the hex-encoded secp256k1 key of the signer.
	PrivateKey string
}

// String redacts the private key so credentials can be logged safely.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{account=%s signer=%s key=***}", c.AccountAddress, c.SignerAddress)
}

// GoString mirrors String for %#v.
func (c Credentials) GoString() string {
	return c.String()
}
