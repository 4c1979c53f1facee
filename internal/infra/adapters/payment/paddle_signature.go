package payment

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"net/url"
	"strings"

	"bigdaytimer-premium/internal/domain"
	"bigdaytimer-premium/internal/domain/ports/adapter"
)

var _ adapter.WebhookVerifier = (*PaddleSignatureVerifier)(nil)

// SignatureField is the form field a signature may be embedded in when the
// delivery carries no X-Paddle-Signature header.
const SignatureField = "p_signature"

// PaddleSignatureVerifier checks a hex HMAC of the raw webhook body.
type PaddleSignatureVerifier struct {
	secret []byte
	newMAC func() hash.Hash
}

// NewPaddleSignatureVerifier accepts algo "sha1" (default) or "sha256".
func NewPaddleSignatureVerifier(secret, algo string) (*PaddleSignatureVerifier, error) {
	v := &PaddleSignatureVerifier{secret: []byte(secret)}
	switch strings.ToLower(algo) {
	case "", "sha1":
		v.newMAC = sha1.New
	case "sha256":
		v.newMAC = sha256.New
	default:
		return nil, fmt.Errorf("unsupported signature algo %q", algo)
	}
	return v, nil
}

// Verify authenticates body. With an empty signature the embedded p_signature
// pair is used, and the signed content is body with that pair removed.
func (v *PaddleSignatureVerifier) Verify(body []byte, signature string) error {
	if len(v.secret) == 0 {
		return fmt.Errorf("%w: webhook secret not configured", domain.ErrUnauthorized)
	}
	signed := body
	if signature == "" {
		var err error
		signature, signed, err = StripEmbeddedSignature(body)
		if err != nil {
			return err
		}
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: missing signature", domain.ErrUnauthorized)
	}
	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", domain.ErrUnauthorized)
	}
	if !hmac.Equal(got, v.mac(signed)) {
		return fmt.Errorf("%w: signature mismatch", domain.ErrUnauthorized)
	}
	return nil
}

// Sign returns the hex signature of body. Used to replay deliveries locally.
func (v *PaddleSignatureVerifier) Sign(body []byte) string {
	return hex.EncodeToString(v.mac(body))
}

// SignForm appends a p_signature pair to a form-encoded body.
func (v *PaddleSignatureVerifier) SignForm(body []byte) []byte {
	out := make([]byte, 0, len(body)+len(SignatureField)+64)
	out = append(out, body...)
	if len(body) > 0 {
		out = append(out, '&')
	}
	out = append(out, SignatureField+"="...)
	return append(out, v.Sign(body)...)
}

func (v *PaddleSignatureVerifier) mac(b []byte) []byte {
	m := hmac.New(v.newMAC, v.secret)
	m.Write(b)
	return m.Sum(nil)
}

// StripEmbeddedSignature finds the single p_signature pair in a form-encoded
// body and returns its value plus the body with exactly that pair (and one
// separator) removed. No pair yields an empty signature; more than one is
// rejected as ambiguous.
func StripEmbeddedSignature(body []byte) (signature string, rest []byte, err error) {
	start, end := -1, -1
	pos := 0
	for pos <= len(body) {
		next := bytes.IndexByte(body[pos:], '&')
		stop := len(body)
		if next >= 0 {
			stop = pos + next
		}
		pair := body[pos:stop]
		key := pair
		if eq := bytes.IndexByte(pair, '='); eq >= 0 {
			key = pair[:eq]
		}
		if k, uerr := url.QueryUnescape(string(key)); uerr == nil && k == SignatureField {
			if start >= 0 {
				return "", nil, fmt.Errorf("%w: duplicate %s", domain.ErrUnauthorized, SignatureField)
			}
			start, end = pos, stop
			raw := ""
			if eq := bytes.IndexByte(pair, '='); eq >= 0 {
				raw = string(pair[eq+1:])
			}
			if signature, uerr = url.QueryUnescape(raw); uerr != nil {
				return "", nil, fmt.Errorf("%w: malformed %s", domain.ErrUnauthorized, SignatureField)
			}
		}
		if next < 0 {
			break
		}
		pos = stop + 1
	}
	if start < 0 {
		return "", body, nil
	}

	rest = make([]byte, 0, len(body)-(end-start))
	switch {
	case end < len(body):
		// drop the pair and the separator after it
		rest = append(rest, body[:start]...)
		rest = append(rest, body[end+1:]...)
	case start > 0:
		// last pair: drop the separator before it
		rest = append(rest, body[:start-1]...)
	}
	return signature, rest, nil
}
