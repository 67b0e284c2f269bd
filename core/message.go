package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/spruceid/siwe-go"
)

const messageHeaderSuffix = " wants you to sign in with your Ethereum account:"

const (
	tagURI            = "URI: "
	tagVersion        = "Version: "
	tagChainID        = "Chain ID: "
	tagNonce          = "Nonce: "
	tagIssuedAt       = "Issued At: "
	tagExpirationTime = "Expiration Time: "
	tagNotBefore      = "Not Before: "
	tagRequestID      = "Request ID: "
	tagResources      = "Resources:"
)

var messageTags = []string{
	tagURI,
	tagVersion,
	tagChainID,
	tagNonce,
	tagIssuedAt,
	tagExpirationTime,
	tagNotBefore,
	tagRequestID,
	tagResources,
}

// SignedMessage is the structured form of an EIP-4361 sign-in message.
// Raw keeps the exact text that was signed.
type SignedMessage struct {
	Raw            string
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime time.Time
	NotBefore      time.Time
	RequestID      string
	Resources      []string
}

// ParseMessage reads an EIP-4361 message with siwe-go. On top of the
// grammar, an expiration time is required and every tag may appear once.
// Any failure yields ErrMalformedMessage.
func ParseMessage(raw string) (*SignedMessage, error) {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	if err := checkLayout(text); err != nil {
		return nil, err
	}

	parsed, err := siwe.ParseMessage(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	uri := parsed.GetURI()
	msg := &SignedMessage{
		Raw:     raw,
		Domain:  parsed.GetDomain(),
		Address: parsed.GetAddress().Hex(),
		URI:     uri.String(),
		Version: parsed.GetVersion(),
		ChainID: int64(parsed.GetChainID()),
		Nonce:   parsed.GetNonce(),
	}
	if s := parsed.GetStatement(); s != nil {
		msg.Statement = *s
	}
	if id := parsed.GetRequestID(); id != nil {
		msg.RequestID = *id
	}
	for _, r := range parsed.GetResources() {
		msg.Resources = append(msg.Resources, r.String())
	}

	if msg.IssuedAt, err = parseMessageTime(parsed.GetIssuedAt()); err != nil {
		return nil, err
	}
	exp := parsed.GetExpirationTime()
	if exp == nil {
		return nil, fmt.Errorf("%w: missing expiration time", ErrMalformedMessage)
	}
	if msg.ExpirationTime, err = parseMessageTime(*exp); err != nil {
		return nil, err
	}
	if nbf := parsed.GetNotBefore(); nbf != nil {
		if msg.NotBefore, err = parseMessageTime(*nbf); err != nil {
			return nil, err
		}
	}

	return msg, nil
}

// checkLayout rejects shapes a regular-expression match lets through: a tag
// repeated further down the message, or an address without its 0x prefix.
func checkLayout(text string) error {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return fmt.Errorf("%w: too short", ErrMalformedMessage)
	}
	if !strings.HasSuffix(lines[0], messageHeaderSuffix) || lines[0] == messageHeaderSuffix {
		return fmt.Errorf("%w: missing header", ErrMalformedMessage)
	}
	if !strings.HasPrefix(lines[1], "0x") {
		return fmt.Errorf("%w: address must start with 0x", ErrMalformedMessage)
	}

	seen := make(map[string]bool, len(messageTags))
	for _, line := range lines[2:] {
		for _, tag := range messageTags {
			if !strings.HasPrefix(line, tag) {
				continue
			}
			if seen[tag] {
				return fmt.Errorf("%w: repeated %q", ErrMalformedMessage, strings.TrimSpace(tag))
			}
			seen[tag] = true
		}
	}
	return nil
}

// String renders the message in EIP-4361 form, the text a wallet signs.
func (m *SignedMessage) String() string {
	var b strings.Builder
	b.WriteString(m.Domain + messageHeaderSuffix + "\n")
	b.WriteString(m.Address + "\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement + "\n")
	}
	b.WriteString("\n")
	b.WriteString(tagURI + m.URI + "\n")
	version := m.Version
	if version == "" {
		version = "1"
	}
	b.WriteString(tagVersion + version + "\n")
	chainID := m.ChainID
	if chainID == 0 {
		chainID = 1
	}
	b.WriteString(tagChainID + strconv.FormatInt(chainID, 10) + "\n")
	b.WriteString(tagNonce + m.Nonce + "\n")
	b.WriteString(tagIssuedAt + m.IssuedAt.UTC().Format(time.RFC3339))
	if !m.ExpirationTime.IsZero() {
		b.WriteString("\n" + tagExpirationTime + m.ExpirationTime.UTC().Format(time.RFC3339))
	}
	if !m.NotBefore.IsZero() {
		b.WriteString("\n" + tagNotBefore + m.NotBefore.UTC().Format(time.RFC3339))
	}
	if m.RequestID != "" {
		b.WriteString("\n" + tagRequestID + m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\n" + tagResources)
		for _, r := range m.Resources {
			b.WriteString("\n- " + r)
		}
	}
	return b.String()
}

func parseMessageTime(s string) (time.Time, error) {
	t, err := iso8601.ParseString(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return t.UTC(), nil
}
