package source

// ConnectionStatus is the lifecycle state of a live vendor link.
type ConnectionStatus string

const (
	ConnectionStatusPending      ConnectionStatus = "pending"
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusSyncing      ConnectionStatus = "syncing"
	ConnectionStatusError        ConnectionStatus = "error"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// ConnectState is what the smart-connect flow reports for a (company, app type)
// pair before and after a connection exists.
type ConnectState string

const (
	ConnectStateSetupRequired      ConnectState = "setup-required"
	ConnectStateCredentialsInvalid ConnectState = "credentials-invalid"
	ConnectStateAvailable          ConnectState = "available"
	ConnectStateConnected          ConnectState = "connected"
)
