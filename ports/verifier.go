package ports

import "github.com/ethereum/go-ethereum/common"

// SignatureVerifier recovers the address that signed a message
type SignatureVerifier interface {
	RecoverAddress(message, signature []byte) (common.Address, error)
}
