package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"bigdaytimer-premium/internal/domain"
)

// MaxUserIDLength bounds the opaque user identifier accepted from clients.
const MaxUserIDLength = 256

var (
	ErrMissingUserID = domain.InvalidRequest("userId is required")
	ErrUserIDTooLong = domain.InvalidRequest("userId is too long")
)

// NormalizeUserID trims id and checks it is non-empty and not oversized.
func NormalizeUserID(id string) (string, error) {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return "", ErrMissingUserID
	case len(id) > MaxUserIDLength:
		return "", ErrUserIDTooLong
	}
	return id, nil
}

// Passthrough is the token embedded into a checkout and echoed back by the
// provider on the matching webhook. Field names are part of the wire format.
type Passthrough struct {
	UserID string `json:"userId"`
	Plan   Plan   `json:"plan,omitempty"`
}

// Encode returns the JSON form sent to the provider.
func (p Passthrough) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePassthrough parses the provider-echoed token. A missing token, bad JSON
// or an empty userId is reported as ErrPermanentNoOp: retrying will not fix it.
func DecodePassthrough(raw string) (Passthrough, error) {
	var p Passthrough
	if strings.TrimSpace(raw) == "" {
		return p, fmt.Errorf("%w: missing passthrough", domain.ErrPermanentNoOp)
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Passthrough{}, fmt.Errorf("%w: passthrough is not valid json: %v", domain.ErrPermanentNoOp, err)
	}
	id, err := NormalizeUserID(p.UserID)
	if err != nil {
		return Passthrough{}, fmt.Errorf("%w: passthrough: %v", domain.ErrPermanentNoOp, err)
	}
	p.UserID = id
	return p, nil
}
