package p2p

import (
	"github.com/libp2p/go-libp2p/core/protocol"
)

// TopicTransactions carries signed transactions in their canonical encoding.
const TopicTransactions = "/handlemint/tx/1"

// Handshake protocol constants.
const (
	// HandshakeProtocol is the stream protocol ID for peer compatibility checking.
	HandshakeProtocol = protocol.ID("/handlemint/handshake/1")

	// ProtocolVersion is the current protocol version advertised during handshake.
	ProtocolVersion uint32 = 1

	// MinProtocolVersion is the minimum protocol version we accept from peers.
	MinProtocolVersion uint32 = 1
)

// maxMessageSize bounds a gossiped transaction.
const maxMessageSize = 256 << 10
