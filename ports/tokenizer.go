package ports

import "github.com/layer-3/walletgate/core"

// Tokenizer mints and validates session tokens
type Tokenizer interface {
	Issue(subject, address string) (*core.Session, string, error)
	Verify(token string) (*core.Session, error)
}
