package verifier

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletgate/core"
)

// EthVerifier recovers signers of EIP-191 personal_sign messages. It holds no
// state and is safe for concurrent use.
type EthVerifier struct{}

// NewEthVerifier creates a new personal_sign verifier
func NewEthVerifier() *EthVerifier {
	return &EthVerifier{}
}

// RecoverAddress returns the address whose key produced signature over message
func (EthVerifier) RecoverAddress(message, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", crypto.SignatureLength, core.ErrInvalidSignature)
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)

	// Wallets emit V as 27/28, go-ethereum expects 0/1
	switch v := sig[crypto.RecoveryIDOffset]; v {
	case 27, 28:
		sig[crypto.RecoveryIDOffset] = v - 27
	case 0, 1:
	default:
		return common.Address{}, fmt.Errorf("unsupported recovery id %d: %w", v, core.ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", core.ErrInvalidSignature)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// Sign produces a personal_sign signature the way a wallet does, with V in
// {27, 28}.
func Sign(key *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
