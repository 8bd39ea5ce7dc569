package p2p

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
)

const (
	// handshakeTimeout is the max time for a complete handshake exchange.
	handshakeTimeout = 10 * time.Second

	// maxHandshakeBytes limits handshake message size.
	maxHandshakeBytes = 4096
)

// HandshakeMessage is exchanged between peers to verify they relay for
// the same protocol deployment.
type HandshakeMessage struct {
	ProtocolVersion uint32 `json:"protocol_version"`
	NetworkID       string `json:"network_id"`
	Deployment      string `json:"deployment"`
	Slot            uint64 `json:"slot"`
}

// registerHandshakeHandler answers handshakes opened by dialing peers.
func (n *Node) registerHandshakeHandler() {
	n.host.SetStreamHandler(HandshakeProtocol, func(stream network.Stream) {
		defer stream.Close()
		remote := stream.Conn().RemotePeer()
		_ = stream.SetDeadline(time.Now().Add(handshakeTimeout))

		var theirs HandshakeMessage
		if err := json.NewDecoder(io.LimitReader(stream, maxHandshakeBytes)).Decode(&theirs); err != nil {
			n.logger.Debug().Err(err).Str("peer", shortID(remote)).Msg("Handshake read failed")
			return
		}
		ours := n.buildHandshakeMessage()
		if err := json.NewEncoder(stream).Encode(&ours); err != nil {
			n.logger.Debug().Err(err).Str("peer", shortID(remote)).Msg("Handshake write failed")
			return
		}
		n.checkHandshake(remote, theirs)
	})
}

// doHandshake runs the dialer side of the handshake.
func (n *Node) doHandshake(id peer.ID) {
	stream, err := n.host.NewStream(n.ctx, id, HandshakeProtocol)
	if err != nil {
		n.logger.Debug().Str("peer", shortID(id)).Err(err).Msg("Handshake stream refused")
		return
	}
	defer stream.Close()
	_ = stream.SetDeadline(time.Now().Add(handshakeTimeout))

	ours := n.buildHandshakeMessage()
	if err := json.NewEncoder(stream).Encode(&ours); err != nil {
		n.logger.Debug().Err(err).Str("peer", shortID(id)).Msg("Handshake send failed")
		return
	}
	stream.CloseWrite()

	var theirs HandshakeMessage
	if err := json.NewDecoder(io.LimitReader(stream, maxHandshakeBytes)).Decode(&theirs); err != nil {
		n.logger.Debug().Err(err).Str("peer", shortID(id)).Msg("Handshake response read failed")
		return
	}
	n.checkHandshake(id, theirs)
}

func (n *Node) checkHandshake(id peer.ID, msg HandshakeMessage) {
	reason := n.validateHandshake(msg)
	if reason == "" {
		n.logger.Debug().Str("peer", shortID(id)).Uint64("slot", msg.Slot).Msg("Handshake complete")
		return
	}
	n.logger.Warn().Str("peer", shortID(id)).Str("reason", reason).Msg("Handshake rejected, banning peer")
	n.BanManager.RecordOffense(id, PenaltyHandshakeFail, reason)
}

// validateHandshake returns "" for a compatible peer, or why it is not.
func (n *Node) validateHandshake(msg HandshakeMessage) string {
	if msg.ProtocolVersion < MinProtocolVersion {
		return fmt.Sprintf("protocol version too low: peer=%d min=%d", msg.ProtocolVersion, MinProtocolVersion)
	}
	if msg.NetworkID != n.config.NetworkID {
		return fmt.Sprintf("network mismatch: peer=%q local=%q", msg.NetworkID, n.config.NetworkID)
	}
	if n.config.Deployment != "" && msg.Deployment != n.config.Deployment {
		return fmt.Sprintf("deployment mismatch: peer=%s local=%s", msg.Deployment, n.config.Deployment)
	}
	return ""
}

func (n *Node) buildHandshakeMessage() HandshakeMessage {
	msg := HandshakeMessage{
		ProtocolVersion: ProtocolVersion,
		NetworkID:       n.config.NetworkID,
		Deployment:      n.config.Deployment,
	}
	if n.slotFn != nil {
		msg.Slot = n.slotFn()
	}
	return msg
}
