package service

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/stackpilot/stackpilot/pkg/source"
)

// stateTokenMaxAge bounds how long an oauth redirect may stay pending.
const stateTokenMaxAge = 10 * time.Minute

// StateToken binds an oauth callback to the company and service that started
// the flow.
type StateToken struct {
	CompanyID string `json:"companyId"`
	Timestamp int64  `json:"timestamp"`
	Service   string `json:"service"`
}

func EncodeStateToken(companyID string, appType source.Type, now time.Time) (string, error) {
	token := StateToken{
		CompanyID: companyID,
		Timestamp: now.UnixMilli(),
		Service:   appType.String(),
	}
	bytes, err := json.Marshal(token)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// DecodeStateToken rejects tokens for the wrong service and tokens older than
// the pending-flow window.
func DecodeStateToken(encoded string, appType source.Type, now time.Time) (*StateToken, error) {
	bytes, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidStateToken
	}

	var token StateToken
	if err := json.Unmarshal(bytes, &token); err != nil {
		return nil, ErrInvalidStateToken
	}

	if token.Service != appType.String() || token.CompanyID == "" {
		return nil, ErrInvalidStateToken
	}

	issued := time.UnixMilli(token.Timestamp)
	if issued.After(now) || now.Sub(issued) > stateTokenMaxAge {
		return nil, ErrInvalidStateToken
	}

	return &token, nil
}
