package sync

import (
	"context"
	"fmt"

	"github.com/matheus3301/wpp-puppet/internal/bus"
	"github.com/matheus3301/wpp-puppet/internal/wa"
	"go.uber.org/zap"
)

// KindHistoryBatch is published after every backfill that found messages.
const KindHistoryBatch = "sync.history_batch"

// MessageFetcher returns messages of a chat newer than since.
type MessageFetcher interface {
	FetchMessages(ctx context.Context, chatID string, since int64) ([]*wa.Message, error)
}

// Checkpoints stores per-chat sync progress and silently stored history.
type Checkpoints interface {
	LatestMessageTimestamp(ctx context.Context, chatID string) (int64, bool, error)
	SetLatestMessageTimestamp(ctx context.Context, chatID string, ts int64) error
	SetMessage(ctx context.Context, id string, msg *wa.Message) error
}

// Pipeline processes one inbound message, emitting it when new.
type Pipeline interface {
	ProcessMessage(ctx context.Context, msg *wa.Message) error
}

// Backfiller replays messages missed while the adapter was not listening.
type Backfiller struct {
	fetcher MessageFetcher
	cp      Checkpoints
	pipe    Pipeline
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewBackfiller creates a new backfiller.
func NewBackfiller(fetcher MessageFetcher, cp Checkpoints, pipe Pipeline, b *bus.Bus, logger *zap.Logger) *Backfiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backfiller{fetcher: fetcher, cp: cp, pipe: pipe, bus: b, logger: logger}
}

// Backfill fetches messages of chatID newer than its checkpoint. The first
// time a chat is seen its history is stored without being emitted; after
// that, newer messages go through the pipeline. It returns how many
// messages were handed to the pipeline.
func (b *Backfiller) Backfill(ctx context.Context, chatID string) (int, error) {
	since, seen, err := b.cp.LatestMessageTimestamp(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("read checkpoint: %w", err)
	}

	msgs, err := b.fetcher.FetchMessages(ctx, chatID, since)
	if err != nil {
		return 0, fmt.Errorf("fetch messages: %w", err)
	}

	latest := since
	processed := 0
	for _, m := range msgs {
		if m.Timestamp > latest {
			latest = m.Timestamp
		}
		if !seen {
			if err := b.cp.SetMessage(ctx, m.ID.ID, m); err != nil {
				return processed, fmt.Errorf("store history: %w", err)
			}
			continue
		}
		if m.Timestamp <= since {
			continue
		}
		if err := b.pipe.ProcessMessage(ctx, m); err != nil {
			b.logger.Warn("backfilled message dropped",
				zap.Error(err), zap.String("chat", chatID), zap.String("msg_id", m.ID.ID))
			continue
		}
		processed++
	}

	if !seen || latest > since {
		if err := b.cp.SetLatestMessageTimestamp(ctx, chatID, latest); err != nil {
			return processed, fmt.Errorf("update checkpoint: %w", err)
		}
	}

	if len(msgs) > 0 && b.bus != nil {
		b.bus.Emit(KindHistoryBatch, map[string]any{
			"chat_id":   chatID,
			"fetched":   len(msgs),
			"processed": processed,
			"first":     !seen,
		})
	}
	b.logger.Debug("backfill done",
		zap.String("chat", chatID), zap.Int("fetched", len(msgs)), zap.Int("processed", processed), zap.Bool("first", !seen))
	return processed, nil
}
