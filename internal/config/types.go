package config

import "github.com/marketdata/moldfeed/internal/protocol/schema"

// NetConfig describes the channel endpoints: where to join the multicast
// feed and where to send unicast retransmission requests.
type NetConfig struct {
	MulticastGroup  string
	MulticastPort   uint16
	MulticastSource string // "" => ASM (any-source), else SSM join
	InterfaceAddr   string
	RerequestAddr   string
	RerequestPort   uint16
	RecvBufBytes    int
}

// RecoveryConfig bounds retransmission requests.
type RecoveryConfig struct {
	MaxRecoveryMessageCount uint16
}

// AppConfig is the process-wide, read-only configuration populated once at
// startup: channel endpoints, recovery bounds, and the message catalog.
type AppConfig struct {
	Net      NetConfig
	Recovery RecoveryConfig
	Catalog  *schema.Catalog
}

const (
	defaultRecvBufBytes            = 4 * 1024 * 1024
	defaultMaxRecoveryMessageCount = 1000
)
