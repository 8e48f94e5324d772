package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer signs bundle staging requests. The staging service authenticates
// submissions by recovering the signer address from a keccak256 hash of the
// request body, Flashbots style.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignBody produces the authentication header value for a request body:
// "<address>:<signature>", where the signature is over the keccak256 hash of
// the body in the Ethereum signed-message scheme.
func (s *Signer) SignBody(body []byte) (string, error) {
	bodyHash := ethcrypto.Keccak256Hash(body)

	// Standard EIP-191 personal-message envelope over the hex body hash.
	msg := []byte(bodyHash.Hex())
	digest := ethcrypto.Keccak256(
		[]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))),
		msg,
	)

	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: sign body: %w", err)
	}

	return s.address.Hex() + ":" + hexutil.Encode(sig), nil
}

// VerifyBody recovers the signer address from a header value produced by
// SignBody and checks it against the embedded address. Used in tests and by
// any local staging stub.
func VerifyBody(body []byte, header string) (bool, error) {
	addrHex, sigHex, ok := strings.Cut(header, ":")
	if !ok {
		return false, fmt.Errorf("crypto/signer: malformed signature header")
	}

	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return false, fmt.Errorf("crypto/signer: decode signature: %w", err)
	}
	if len(sig) != 65 {
		return false, fmt.Errorf("crypto/signer: expected 65-byte signature, got %d", len(sig))
	}

	bodyHash := ethcrypto.Keccak256Hash(body)
	msg := []byte(bodyHash.Hex())
	digest := ethcrypto.Keccak256(
		[]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))),
		msg,
	)

	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return false, fmt.Errorf("crypto/signer: recover pubkey: %w", err)
	}

	return ethcrypto.PubkeyToAddress(*pub) == common.HexToAddress(addrHex), nil
}
