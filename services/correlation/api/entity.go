package api

import (
	"encoding/json"
	"time"

	"github.com/stackpilot/stackpilot/services/correlation/engine"
	"github.com/stackpilot/stackpilot/services/integration/model"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func ok(data any) Response {
	return Response{Success: true, Data: data}
}

func fail(message string) Response {
	return Response{Success: false, Message: message}
}

// CorrelatedUser is the decoded view of a stored cross-platform identity.
type CorrelatedUser struct {
	ID            string                              `json:"id"`
	PrimaryEmail  string                              `json:"primaryEmail"`
	Platforms     map[string]engine.PlatformPresence  `json:"platforms"`
	GhostStatus   engine.GhostStatus                  `json:"ghostStatus"`
	SecurityRisks engine.SecurityRisks                `json:"securityRisks"`
	LicenseWaste  engine.LicenseWaste                 `json:"licenseWaste"`
	LastSyncAt    time.Time                           `json:"lastSyncAt"`
}

func newCorrelatedUser(m model.CrossPlatformUser) (CorrelatedUser, error) {
	out := CorrelatedUser{
		ID:           m.ID.String(),
		PrimaryEmail: m.PrimaryEmail,
		LastSyncAt:   m.LastSyncAt,
	}

	if err := json.Unmarshal(m.Platforms, &out.Platforms); err != nil {
		return out, err
	}
	if err := json.Unmarshal(m.GhostStatus, &out.GhostStatus); err != nil {
		return out, err
	}
	if err := json.Unmarshal(m.SecurityRisks, &out.SecurityRisks); err != nil {
		return out, err
	}
	if err := json.Unmarshal(m.LicenseWaste, &out.LicenseWaste); err != nil {
		return out, err
	}

	return out, nil
}

// Summary aggregates one company's correlated identities for the dashboard.
type Summary struct {
	TotalUsers       int            `json:"totalUsers"`
	GhostUsers       int            `json:"ghostUsers"`
	UsersAtRisk      int            `json:"usersAtRisk"`
	TotalMonthlyCost float64        `json:"totalMonthlyCost"`
	WastedCost       float64        `json:"wastedCost"`
	PlatformCounts   map[string]int `json:"platformCounts"`
	LastSyncAt       *time.Time     `json:"lastSyncAt,omitempty"`
}

type RunResponse struct {
	CorrelatedUsers int `json:"correlatedUsers"`
}
