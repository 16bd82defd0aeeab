package clients

import (
	"crypto/ecdsa"
	"math/big"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/asterbot/internal/domain"
)

// DefaultRecvWindow is the validity window, in milliseconds, attached to every signed request.
const DefaultRecvWindow int64 = 50000

// NonceSource issues strictly increasing microsecond nonces, safe for concurrent use.
type NonceSource struct {
	last atomic.Uint64
	now  func() time.Time
}

// NewNonceSource creates a nonce source backed by the wall clock.
func NewNonceSource() *NonceSource {
	return &NonceSource{now: time.Now}
}

// Next returns max(now in microseconds, previous+1).
func (n *NonceSource) Next() uint64 {
	for {
		prev := n.last.Load()
		next := uint64(n.now().UnixMicro())
		if next <= prev {
			next = prev + 1
		}
		if n.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// RequestSigner produces the authentication fields for Aster v3 requests.
type RequestSigner struct {
	key        *ecdsa.PrivateKey
	user       string
	signer     string
	userAddr   common.Address
	signerAddr common.Address
	keyAddr    common.Address
	recvWindow int64
	nonces     *NonceSource
	now        func() time.Time
	arguments  abi.Arguments
}

// SignerOption configures a RequestSigner.
type SignerOption func(*RequestSigner)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) SignerOption {
	return func(s *RequestSigner) {
		s.now = now
	}
}

// WithNonceSource overrides the nonce source.
func WithNonceSource(n *NonceSource) SignerOption {
	return func(s *RequestSigner) {
		s.nonces = n
	}
}

// NewRequestSigner validates the credentials and prepares the ABI layout used for hashing.
func NewRequestSigner(creds domain.Credentials, opts ...SignerOption) (*RequestSigner, error) {
	key := strings.TrimSpace(creds.PrivateKey)
	if len(key) >= 2 && (key[:2] == "0x" || key[:2] == "0X") {
		key = key[2:]
	}
	if key == "" {
		return nil, domain.NewConfigurationError("ASTER_PRIVATE_KEY", "is empty")
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, domain.NewConfigurationError("ASTER_PRIVATE_KEY", "not a valid secp256k1 hex key")
	}

	if !common.IsHexAddress(creds.AccountAddress) {
		return nil, domain.NewConfigurationError("ASTER_USER_ADDRESS", "not a valid address")
	}
	if !common.IsHexAddress(creds.SignerAddress) {
		return nil, domain.NewConfigurationError("ASTER_SIGNER_ADDRESS", "not a valid address")
	}

	arguments, err := signingArguments()
	if err != nil {
		return nil, err
	}

	s := &RequestSigner{
		key:        privateKey,
		user:       creds.AccountAddress,
		signer:     creds.SignerAddress,
		userAddr:   common.HexToAddress(creds.AccountAddress),
		signerAddr: common.HexToAddress(creds.SignerAddress),
		keyAddr:    crypto.PubkeyToAddress(privateKey.PublicKey),
		recvWindow: DefaultRecvWindow,
		nonces:     NewNonceSource(),
		now:        time.Now,
		arguments:  arguments,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func signingArguments() (abi.Arguments, error) {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		return nil, errors.Wrap(err, "abi string type")
	}
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, errors.Wrap(err, "abi address type")
	}
	uintType, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return nil, errors.Wrap(err, "abi uint256 type")
	}

	return abi.Arguments{
		{Type: stringType},
		{Type: addressType},
		{Type: addressType},
		{Type: uintType},
	}, nil
}

// KeyAddress is the address derived from the private key.
func (s *RequestSigner) KeyAddress() common.Address {
	return s.keyAddr
}

// SignerMatchesKey reports whether the configured signer address belongs to the private key.
func (s *RequestSigner) SignerMatchesKey() bool {
	return s.keyAddr == s.signerAddr
}

// Sign signs params with a fresh nonce and timestamp.
func (s *RequestSigner) Sign(params Params) (*domain.SignedEnvelope, error) {
	return s.SignWithNonce(params, s.nonces.Next())
}

// SignWithNonce signs params with the given nonce. The timestamp is still taken at call time.
func (s *RequestSigner) SignWithNonce(params Params, nonce uint64) (*domain.SignedEnvelope, error) {
	timestamp := s.now().UnixMilli()

	withWindow := params.Clone()
	withWindow["recvWindow"] = s.recvWindow
	withWindow["timestamp"] = timestamp

	flat, err := canonicalize(withWindow)
	if err != nil {
		return nil, err
	}

	canonical, err := encodeJSON(flat)
	if err != nil {
		return nil, err
	}

	packed, err := s.arguments.Pack(canonical, s.userAddr, s.signerAddr, new(big.Int).SetUint64(nonce))
	if err != nil {
		return nil, errors.Wrap(err, "abi encode signing payload")
	}

	hash := crypto.Keccak256(packed)

	signature, err := crypto.Sign(accounts.TextHash(hash), s.key)
	if err != nil {
		return nil, errors.Wrap(err, "sign request")
	}
	signature[64] += 27

	wire := make(map[string]string, len(flat)+4)
	for k, v := range flat {
		wire[k] = v
	}
	wire["nonce"] = strconv.FormatUint(nonce, 10)
	wire["user"] = s.user
	wire["signer"] = s.signer
	wire["signature"] = hexutil.Encode(signature)

	return &domain.SignedEnvelope{
		Params:      wire,
		RecvWindow:  s.recvWindow,
		TimestampMs: timestamp,
		Nonce:       nonce,
		User:        s.user,
		Signer:      s.signer,
		Signature:   wire["signature"],
		Message:     hexutil.Encode(hash),
		Canonical:   canonical,
	}, nil
}
