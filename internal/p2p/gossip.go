package p2p

import (
	"context"
	"fmt"
	"time"

	"github.com/Klingon-tech/handlemint/internal/ledger"
	"github.com/Klingon-tech/handlemint/pkg/tx"
	"github.com/Klingon-tech/handlemint/pkg/types"
	"github.com/libp2p/go-libp2p/core/peer"
)

// relaySubmitTimeout bounds the local submit of a gossiped transaction.
const relaySubmitTimeout = 10 * time.Second

// BroadcastTx publishes a transaction to the gossip network.
func (n *Node) BroadcastTx(t *tx.Transaction) error {
	if n.topicTx == nil {
		return fmt.Errorf("p2p node not started")
	}
	return n.topicTx.Publish(n.ctx, t.Bytes())
}

// Broadcaster submits transactions by gossiping them. It lets a batch
// hand its transactions to peers instead of a local ledger.
type Broadcaster struct {
	node *Node
}

var _ ledger.Submitter = (*Broadcaster)(nil)

// NewBroadcaster wraps a started node as a ledger.Submitter.
func NewBroadcaster(n *Node) *Broadcaster {
	return &Broadcaster{node: n}
}

// Submit publishes the transaction and returns its hash.
func (b *Broadcaster) Submit(_ context.Context, t *tx.Transaction) (types.Hash, error) {
	if err := b.node.BroadcastTx(t); err != nil {
		return types.Hash{}, fmt.Errorf("broadcast tx: %w", err)
	}
	return t.Hash(), nil
}

// RelayTo installs a tx handler that decodes gossiped transactions and
// submits them to sub. Peers sending undecodable or rejected transactions
// are penalised.
func (n *Node) RelayTo(sub ledger.Submitter) {
	n.SetTxHandler(func(from peer.ID, data []byte) {
		t, err := tx.FromBytes(data)
		if err != nil {
			n.logger.Debug().Str("peer", shortID(from)).Err(err).Msg("Malformed tx from peer")
			n.BanManager.RecordOffense(from, PenaltyMalformedTx, "malformed tx")
			return
		}

		ctx, cancel := context.WithTimeout(n.ctx, relaySubmitTimeout)
		defer cancel()
		hash, err := sub.Submit(ctx, t)
		if err != nil {
			n.logger.Debug().Str("peer", shortID(from)).Str("tx", t.Hash().String()).Err(err).Msg("Relayed tx rejected")
			n.BanManager.RecordOffense(from, PenaltyRejectedTx, "rejected tx")
			return
		}
		n.logger.Info().Str("peer", shortID(from)).Str("tx", hash.String()).Msg("Relayed tx applied")
	})
}
