// Package handler turns raw transport events into cache mutations and
// canonical puppet events. All events of a session flow through one
// goroutine; see Start.
package handler

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/matheus3301/wpp-puppet/internal/bus"
	"github.com/matheus3301/wpp-puppet/internal/cache"
	"github.com/matheus3301/wpp-puppet/internal/reqpool"
	"github.com/matheus3301/wpp-puppet/internal/status"
	"github.com/matheus3301/wpp-puppet/internal/wa"
	"go.uber.org/zap"
)

// KindIncomingCall is published for observers; it is not a puppet event.
const KindIncomingCall = "wa.incoming_call"

// ErrDeliveryFailed is the rejection of a send whose ack reported an error.
var ErrDeliveryFailed = errors.New("delivery failed")

// Config tunes the handlers.
type Config struct {
	// UserName overrides the bot's own display name.
	UserName         string
	LogoutGrace      time.Duration
	BatteryThreshold int
	LoginBatchSize   int
	ReadyBatchSize   int
	QueueSize        int
}

func (c *Config) withDefaults() {
	if c.LoginBatchSize <= 0 {
		c.LoginBatchSize = 500
	}
	if c.ReadyBatchSize <= 0 {
		c.ReadyBatchSize = 100
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.LogoutGrace <= 0 {
		c.LogoutGrace = 30 * time.Second
	}
}

// Backfiller replays missed messages of one chat.
type Backfiller interface {
	Backfill(ctx context.Context, chatID string) (int, error)
}

// Scheduler drives the periodic missed-message sync.
type Scheduler interface {
	Start(ctx context.Context)
	Stop()
}

// logoutRetry is how long a deferred logout waits for room in a full queue.
const logoutRetry = 100 * time.Millisecond

// internal events re-entering the flow from timers.
type (
	logoutTimerFired struct{ gen int }
	syncTick         struct{}
)

// Handler owns the per-session state.
type Handler struct {
	transport wa.Transport
	cache     *cache.Manager
	pool      *reqpool.Pool
	bus       *bus.Bus
	machine   *status.Machine
	cfg       Config
	logger    *zap.Logger

	backfill Backfiller
	schedule Scheduler

	queue  chan any
	cancel context.CancelFunc
	done   chan struct{}

	// pipeMu serializes the message pipeline between the event flow and
	// the ready loader.
	pipeMu gosync.Mutex

	mu          gosync.Mutex
	selfID      string
	logoutTimer *time.Timer
	logoutGen   int
	loadCancel  context.CancelFunc
	loadDone    chan struct{}
}

// New creates a handler. Attach must be called before Start when periodic
// sync and backfill are wanted.
func New(t wa.Transport, c *cache.Manager, p *reqpool.Pool, b *bus.Bus, m *status.Machine, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.withDefaults()
	return &Handler{
		transport: t,
		cache:     c,
		pool:      p,
		bus:       b,
		machine:   m,
		cfg:       cfg,
		logger:    logger,
		queue:     make(chan any, cfg.QueueSize),
	}
}

// Attach sets the sync collaborators.
func (h *Handler) Attach(b Backfiller, s Scheduler) {
	h.backfill = b
	h.schedule = s
}

// Start registers with the transport and begins draining events.
func (h *Handler) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})
	h.transport.OnEvent(func(evt wa.Event) { h.Enqueue(evt) })

	go func() {
		defer close(h.done)
		for {
			select {
			case evt := <-h.queue:
				if err := h.Handle(ctx, evt); err != nil {
					h.logger.Error("event handler failed", zap.String("event", eventName(evt)), zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the event flow, the loader and the schedule.
func (h *Handler) Stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}
	h.stopLoading()
	h.mu.Lock()
	h.stopLogoutTimerLocked()
	h.mu.Unlock()
	if h.schedule != nil {
		h.schedule.Stop()
	}
}

// Enqueue hands evt to the event flow. It blocks while the queue is full,
// and drops evt once the flow has been stopped.
func (h *Handler) Enqueue(evt any) {
	select {
	case h.queue <- evt:
	case <-h.done:
		h.logger.Debug("event flow stopped, event dropped", zap.String("event", eventName(evt)))
	}
}

// SyncTick requests a missed-message sync of every known chat.
func (h *Handler) SyncTick() {
	select {
	case h.queue <- syncTick{}:
	default:
		h.logger.Debug("sync tick skipped, queue full")
	}
}

// SelfID returns the bot's own contact id, empty when logged out.
func (h *Handler) SelfID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.selfID
}

// Handle processes one event synchronously. Start calls it for every
// queued event.
func (h *Handler) Handle(ctx context.Context, evt any) error {
	switch e := evt.(type) {
	case wa.QREvent:
		return h.onQR(e)
	case wa.AuthenticatedEvent:
		return h.onAuthenticated(e)
	case wa.AuthFailureEvent:
		return h.onAuthFailure(e)
	case wa.ReadyEvent:
		return h.onReady(ctx)
	case wa.ChangeStateEvent:
		return h.onChangeState(ctx, e.State)
	case wa.ChangeBatteryEvent:
		return h.onChangeBattery(e.Info)
	case wa.DisconnectedEvent:
		return h.logout(e.Reason)
	case logoutTimerFired:
		return h.onLogoutTimer(e)
	case syncTick:
		return h.onSyncTick(ctx)

	case wa.MessageEvent:
		return h.ProcessMessage(ctx, e.Message)
	case wa.MessageCreateEvent:
		return h.onMessageCreate(ctx, e.Message)
	case wa.MessageAckEvent:
		return h.onMessageAck(ctx, e.ID, e.Ack, e.Message)
	case wa.MediaUploadedEvent:
		return h.onMediaUploaded(ctx, e.Message)
	case wa.MessageRevokeEveryoneEvent:
		return h.onRevokeEveryone(ctx, e)
	case wa.MessageRevokeMeEvent:
		h.logger.Info("revoke for me is unsupported", zap.String("msg_id", msgID(e.Message)))
		return nil
	case wa.IncomingCallEvent:
		h.logger.Info("incoming call", zap.String("from", e.Call.From), zap.Bool("video", e.Call.IsVideo))
		h.bus.Emit(KindIncomingCall, e.Call)
		return nil

	case wa.GroupJoinEvent:
		return h.onGroupJoin(ctx, e.Notification)
	case wa.GroupLeaveEvent:
		return h.onGroupLeave(ctx, e.Notification)
	case wa.GroupUpdateEvent:
		return h.onGroupUpdate(ctx, e.Notification)
	}
	return fmt.Errorf("unhandled event %T", evt)
}

func eventName(evt any) string {
	if e, ok := evt.(wa.Event); ok {
		return wa.EventName(e)
	}
	return fmt.Sprintf("%T", evt)
}

func msgID(m *wa.Message) string {
	if m == nil {
		return ""
	}
	return m.ID.ID
}

// chunks splits ids into consecutive groups of at most size.
func chunks(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
