package entity

import (
	"time"

	"github.com/stackpilot/stackpilot/pkg/source"
	"github.com/stackpilot/stackpilot/services/integration/model"
)

// Response is the envelope every endpoint answers with. Data is set on
// success, Message on failure.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func OK(data any) Response {
	return Response{Success: true, Data: data}
}

func Fail(message string) Response {
	return Response{Success: false, Message: message}
}

type SaveCredentialRequest struct {
	CompanyID string            `json:"companyId" validate:"required"`
	AppType   source.Type       `json:"appType" validate:"required"`
	AppName   string            `json:"appName"`
	Fields    map[string]string `json:"fields" validate:"required"`
	CreatedBy string            `json:"createdBy"`
}

type SaveCredentialResponse struct {
	ID       string   `json:"id"`
	Warnings []string `json:"warnings,omitempty"`
}

// Credential is the redacted view of a stored credential set. Field
// values are never echoed back, only their names.
type Credential struct {
	ID        string      `json:"id"`
	CompanyID string      `json:"companyId"`
	AppType   source.Type `json:"appType"`
	AppName   string      `json:"appName,omitempty"`
	Fields    []string    `json:"fields"`
	CreatedBy string      `json:"createdBy,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func NewCredential(m model.CredentialSet) Credential {
	var names []string
	if fields, err := m.DecodeFields(); err == nil {
		for name := range fields {
			names = append(names, name)
		}
	}

	return Credential{
		ID:        m.ID.String(),
		CompanyID: m.CompanyID,
		AppType:   m.AppType,
		AppName:   m.AppName,
		Fields:    names,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type ConnectRequest struct {
	CompanyID string      `json:"companyId" validate:"required"`
	AppType   source.Type `json:"appType" validate:"required"`
	AppName   string      `json:"appName"`
}

type ConnectResponse struct {
	State       source.ConnectState `json:"state"`
	RedirectURL string              `json:"redirectUrl,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	Connection  *Connection         `json:"connection,omitempty"`
}

type StatusResponse struct {
	AppType source.Type         `json:"appType"`
	State   source.ConnectState `json:"state"`
	Reason  string              `json:"reason,omitempty"`
}

type Connection struct {
	ID                string                  `json:"id"`
	CompanyID         string                  `json:"companyId"`
	AppType           source.Type             `json:"appType"`
	ExternalAccountID string                  `json:"externalAccountId"`
	AccountName       string                  `json:"accountName,omitempty"`
	Scope             string                  `json:"scope,omitempty"`
	Status            source.ConnectionStatus `json:"status"`
	SyncError         string                  `json:"syncError,omitempty"`
	LastSyncAt        *time.Time              `json:"lastSyncAt,omitempty"`
	CreatedAt         time.Time               `json:"createdAt"`
}

func NewConnection(m model.ServiceConnection) Connection {
	return Connection{
		ID:                m.ID.String(),
		CompanyID:         m.CompanyID,
		AppType:           m.AppType,
		ExternalAccountID: m.ExternalAccountID,
		AccountName:       m.AccountName,
		Scope:             m.Scope,
		Status:            m.Status,
		SyncError:         m.SyncError,
		LastSyncAt:        m.LastSyncAt,
		CreatedAt:         m.CreatedAt,
	}
}

type DisconnectResponse struct {
	CredentialsDeactivated bool     `json:"credentialsDeactivated"`
	ConnectionsDeleted     int      `json:"connectionsDeleted"`
	Errors                 []string `json:"errors,omitempty"`
}

type SyncResponse struct {
	Synced map[source.Type]int    `json:"synced"`
	Failed map[source.Type]string `json:"failed,omitempty"`
}
