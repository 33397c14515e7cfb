package entity

import (
	"time"

	"github.com/guregu/null/v6"
)

type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionError        ConnectionState = "error"
)

type ConnectionStatus struct {
	Exchange     ExchangeName    `json:"exchange"`
	Status       ConnectionState `json:"status"`
	LastUpdate   time.Time       `json:"lastUpdate"`
	ErrorMessage null.String     `json:"errorMessage"`
}

// ConnectorInfo is the read model returned by the control surface.
type ConnectorInfo struct {
	ConnectionStatus
	Subscriptions []string `json:"subscriptions"`
}
