package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/wpp-puppet/internal/bus"
	"github.com/matheus3301/wpp-puppet/internal/errs"
	"github.com/matheus3301/wpp-puppet/internal/reqpool"
	"github.com/matheus3301/wpp-puppet/internal/wa"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Bus kinds published by the sender.
const (
	KindSendAck    = "outbox.send_ack"
	KindSendFailed = "outbox.send_failed"
)

// MessageSender is the part of the transport the sender needs.
type MessageSender interface {
	NewMessageID() string
	SendMessage(ctx context.Context, chatID string, content wa.Content, id string) (*wa.Message, error)
}

// Config tunes the sender.
type Config struct {
	// Timeout bounds the wait for the ack confirming a send.
	Timeout time.Duration
	// Rate and Burst limit sends per chat.
	Rate  float64
	Burst int
}

// Sender sends messages one chat queue at a time and waits until the ack
// event confirms each send.
type Sender struct {
	transport MessageSender
	pool      *reqpool.Pool
	bus       *bus.Bus
	cfg       Config
	logger    *zap.Logger

	mu     sync.Mutex
	queues map[string]*rate.Limiter
	closed bool
}

// NewSender creates a new sender.
func NewSender(t MessageSender, p *reqpool.Pool, b *bus.Bus, cfg Config, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Sender{
		transport: t,
		pool:      p,
		bus:       b,
		cfg:       cfg,
		logger:    logger,
		queues:    make(map[string]*rate.Limiter),
	}
}

// Send delivers content to chatID and returns the message id once the
// transport acknowledged it. A send that is never acknowledged fails with a
// RequestTimeout error.
func (s *Sender) Send(ctx context.Context, chatID string, content wa.Content) (string, error) {
	q, err := s.queue(chatID)
	if err != nil {
		return "", err
	}
	if err := q.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait send slot: %w", err)
	}

	id := s.transport.NewMessageID()
	pending := s.pool.Push(id, s.cfg.Timeout)

	if _, err := s.transport.SendMessage(ctx, chatID, content, id); err != nil {
		s.pool.Reject(id, err)
		s.failed(chatID, id, err)
		return "", fmt.Errorf("send message: %w", err)
	}

	if err := pending.Wait(ctx); err != nil {
		s.failed(chatID, id, err)
		return id, err
	}

	s.logger.Info("message sent", zap.String("chat", chatID), zap.String("msg_id", id))
	if s.bus != nil {
		s.bus.Emit(KindSendAck, map[string]string{"chat_id": chatID, "msg_id": id})
	}
	return id, nil
}

func (s *Sender) failed(chatID, id string, err error) {
	s.logger.Error("failed to send message", zap.Error(err), zap.String("chat", chatID), zap.String("msg_id", id))
	if s.bus != nil {
		s.bus.Emit(KindSendFailed, map[string]string{"chat_id": chatID, "msg_id": id, "error": err.Error()})
	}
}

// queue returns the rate limiter of chatID, creating it on first use.
func (s *Sender) queue(chatID string) (*rate.Limiter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errs.New(errs.CodeRateLimitQueueMissing, "sender closed, no queue for %s", chatID)
	}
	q, ok := s.queues[chatID]
	if !ok {
		limit := rate.Inf
		if s.cfg.Rate > 0 {
			limit = rate.Limit(s.cfg.Rate)
		}
		q = rate.NewLimiter(limit, s.cfg.Burst)
		s.queues[chatID] = q
	}
	return q, nil
}

// Open makes the sender accept sends again after Close.
func (s *Sender) Open() {
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()
}

// Close drops every chat queue; sends fail until Open.
func (s *Sender) Close() {
	s.mu.Lock()
	s.closed = true
	s.queues = make(map[string]*rate.Limiter)
	s.mu.Unlock()
}
