package handler

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/matheus3301/wpp-puppet/internal/errs"
	"github.com/matheus3301/wpp-puppet/internal/model"
	"github.com/matheus3301/wpp-puppet/internal/status"
	"github.com/matheus3301/wpp-puppet/internal/wa"
	"go.uber.org/zap"
)

func (h *Handler) onQR(e wa.QREvent) error {
	if err := h.machine.Transition(status.Authenticating); err != nil {
		h.logger.Warn("qr while not logged out", zap.Error(err))
	}
	h.bus.Emit(model.KindScan, model.ScanEvent{Status: model.ScanStatusWaiting, QRCode: e.Code})
	return nil
}

// The transport persists its own credentials; confirming the scan is all
// that is left to do here.
func (h *Handler) onAuthenticated(wa.AuthenticatedEvent) error {
	h.logger.Info("authenticated")
	h.bus.Emit(model.KindScan, model.ScanEvent{Status: model.ScanStatusConfirmed})
	return nil
}

func (h *Handler) onAuthFailure(e wa.AuthFailureEvent) error {
	h.logger.Warn("authentication failed", zap.String("reason", e.Reason))
	if err := h.machine.Transition(status.LoggedOut); err != nil {
		return err
	}
	h.bus.Emit(model.KindScan, model.ScanEvent{Status: model.ScanStatusTimeout, Data: e.Reason})
	return nil
}

func (h *Handler) onReady(ctx context.Context) error {
	if h.machine.Current() != status.LoggedIn || h.SelfID() == "" {
		if err := h.login(ctx); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := h.machine.Transition(status.LoggedIn); err != nil {
			return err
		}
	}
	h.startLoading(ctx)
	return nil
}

// login binds the cache to the session user, stores the own contact and
// every synced contact or room not cached yet, then emits login.
func (h *Handler) login(ctx context.Context) error {
	me, err := h.transport.Me(ctx)
	if err != nil {
		return errs.New(errs.CodeInit, "get session info: %v", err)
	}
	if me == nil || me.ID == "" {
		return errs.New(errs.CodeInit, "session info has no user id")
	}

	if err := h.cache.Init(ctx, me.ID); err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	self, err := h.transport.ContactByID(ctx, me.ID)
	if err != nil || self == nil {
		h.logger.Debug("own contact unavailable", zap.Error(err))
		self = &wa.Contact{ID: me.ID, PushName: me.PushName, IsUser: true, IsWAContact: true}
	}
	self.IsMe = true
	self.Avatar = h.avatar(ctx, me.ID)
	if err := h.cache.SetContactOrRoom(ctx, me.ID, self); err != nil {
		return fmt.Errorf("store own contact: %w", err)
	}

	contacts, err := h.transport.Contacts(ctx)
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}
	byID := make(map[string]*wa.Contact, len(contacts))
	ids := make([]string, 0, len(contacts))
	for i := range contacts {
		c := &contacts[i]
		if c.ID == me.ID || (!wa.IsContactID(c.ID) && !wa.IsRoomID(c.ID)) {
			continue
		}
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	stored := 0
	for _, chunk := range chunks(ids, h.cfg.LoginBatchSize) {
		for _, id := range chunk {
			cached, err := h.cache.ContactOrRoom(ctx, id)
			if err != nil {
				return err
			}
			if cached != nil {
				continue
			}
			c := byID[id]
			c.Avatar = ""
			if err := h.cache.SetContactOrRoom(ctx, id, c); err != nil {
				return fmt.Errorf("store %s: %w", id, err)
			}
			stored++
		}
	}

	h.mu.Lock()
	h.selfID = me.ID
	h.mu.Unlock()

	h.logger.Info("logged in", zap.String("user", me.ID), zap.Int("synced", len(ids)), zap.Int("new", stored))
	h.bus.Emit(model.KindLogin, model.LoginEvent{ContactID: me.ID})
	return nil
}

// startLoading runs the ready sequence on its own goroutine so the event
// flow keeps draining meanwhile. Only one load runs at a time.
func (h *Handler) startLoading(ctx context.Context) {
	if !h.machine.BeginLoading() {
		h.logger.Debug("ready sequence already running")
		return
	}

	lctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	h.mu.Lock()
	h.loadCancel, h.loadDone = cancel, done
	h.mu.Unlock()

	go func() {
		defer close(done)
		defer h.machine.EndLoading()
		if err := h.readySequence(lctx); err != nil {
			h.logger.Warn("ready sequence aborted", zap.Error(err))
		}
	}()
}

func (h *Handler) stopLoading() {
	h.mu.Lock()
	cancel, done := h.loadCancel, h.loadDone
	h.loadCancel, h.loadDone = nil, nil
	h.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// WaitLoaded blocks until the running ready sequence, if any, finishes.
func (h *Handler) WaitLoaded() {
	h.mu.Lock()
	done := h.loadDone
	h.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (h *Handler) readySequence(ctx context.Context) error {
	contactIDs, err := h.cache.ContactIDList(ctx)
	if err != nil {
		return err
	}
	roomIDs, err := h.cache.RoomIDList(ctx)
	if err != nil {
		return err
	}
	ids := append(contactIDs, roomIDs...)

	for _, chunk := range chunks(ids, h.cfg.ReadyBatchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		var wg gosync.WaitGroup
		for _, id := range chunk {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := h.syncEntity(ctx, id); err != nil {
					h.logger.Warn("entity sync failed", zap.String("id", id), zap.Error(err))
				}
			}()
		}
		wg.Wait()

		if h.backfill == nil {
			continue
		}
		for _, id := range chunk {
			if _, err := h.backfill.Backfill(ctx, id); err != nil {
				h.logger.Warn("backfill failed", zap.String("chat", id), zap.Error(err))
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h.logger.Info("ready", zap.Int("contacts", len(contactIDs)), zap.Int("rooms", len(roomIDs)))
	h.bus.Emit(model.KindReady, model.ReadyEvent{})
	if h.schedule != nil {
		h.schedule.Start(context.WithoutCancel(ctx))
	}
	return nil
}

// syncEntity refreshes the avatar of a contact or room, and the member list
// of a room. A room whose member list comes back empty was deleted or left
// and is dropped from the cache.
func (h *Handler) syncEntity(ctx context.Context, id string) error {
	raw, err := h.cache.ContactOrRoom(ctx, id)
	if err != nil || raw == nil {
		return err
	}
	raw.Avatar = h.avatar(ctx, id)

	if wa.IsRoomID(id) {
		chat, err := h.transport.GroupChatByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get group: %w", err)
		}
		if chat == nil || len(chat.Participants) == 0 {
			h.logger.Info("room has no members, dropping", zap.String("room", id))
			return h.dropRoom(ctx, id)
		}
		if err := h.cache.SetRoomMemberList(ctx, id, chat.ParticipantIDs()); err != nil {
			return err
		}
		mergeGroup(raw, chat)
	}
	return h.cache.SetContactOrRoom(ctx, id, raw)
}

func (h *Handler) avatar(ctx context.Context, id string) string {
	url, err := h.transport.ProfilePicURL(ctx, id)
	if err != nil {
		h.logger.Debug("no avatar", zap.String("id", id), zap.Error(err))
		return ""
	}
	return url
}

func (h *Handler) onChangeState(_ context.Context, state wa.ConnectionState) error {
	switch state {
	case wa.StateConnected:
		h.mu.Lock()
		if h.stopLogoutTimerLocked() {
			h.logger.Info("reconnected within grace window")
		}
		h.mu.Unlock()
	case wa.StateTimeout:
		h.armLogoutTimer()
	case wa.StateConflict, wa.StateUnpaired, wa.StateUnpairedIdle, wa.StateUnlaunched, wa.StateTOSBlock:
		return h.logout(string(state))
	default:
		h.logger.Debug("connection state", zap.String("state", string(state)))
	}
	return nil
}

func (h *Handler) armLogoutTimer() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.selfID == "" || h.logoutTimer != nil {
		return
	}
	h.logoutGen++
	gen := h.logoutGen
	h.logoutTimer = time.AfterFunc(h.cfg.LogoutGrace, func() { h.fireLogoutTimer(gen) })
	h.logger.Info("connection timeout, logout deferred", zap.Duration("grace", h.cfg.LogoutGrace))
}

// stopLogoutTimerLocked cancels a pending deferred logout and reports
// whether there was one.
func (h *Handler) stopLogoutTimerLocked() bool {
	if h.logoutTimer == nil {
		return false
	}
	h.logoutTimer.Stop()
	h.logoutTimer = nil
	h.logoutGen++
	return true
}

func (h *Handler) onLogoutTimer(e logoutTimerFired) error {
	h.mu.Lock()
	if e.gen != h.logoutGen || h.logoutTimer == nil {
		h.mu.Unlock()
		return nil
	}
	h.logoutTimer = nil
	h.mu.Unlock()
	return h.logout("connection timeout")
}

func (h *Handler) onChangeBattery(info wa.BatteryInfo) error {
	selfID := h.SelfID()
	if selfID == "" || h.cfg.BatteryThreshold <= 0 {
		return nil
	}
	if info.Battery <= h.cfg.BatteryThreshold && !info.Plugged {
		h.bus.Emit(model.KindLogout, model.LogoutEvent{
			ContactID: selfID,
			Reason:    fmt.Sprintf("battery low: %d%%", info.Battery),
		})
	}
	return nil
}

// logout tears the session down: loader, schedule, pending sends, cache.
func (h *Handler) logout(reason string) error {
	h.mu.Lock()
	selfID := h.selfID
	h.selfID = ""
	h.stopLogoutTimerLocked()
	h.mu.Unlock()

	h.stopLoading()
	if h.schedule != nil {
		h.schedule.Stop()
	}
	h.pool.Clear()

	if selfID == "" && h.machine.Current() == status.LoggedOut {
		h.logger.Debug("logout while logged out", zap.String("reason", reason))
		return nil
	}

	h.logger.Info("logged out", zap.String("user", selfID), zap.String("reason", reason))
	h.bus.Emit(model.KindLogout, model.LogoutEvent{ContactID: selfID, Reason: reason})

	err := h.cache.Release()
	if terr := h.machine.Transition(status.LoggedOut); terr != nil {
		h.logger.Warn("status transition failed", zap.Error(terr))
	}
	if err != nil {
		return fmt.Errorf("release cache: %w", err)
	}
	return nil
}

func (h *Handler) onSyncTick(ctx context.Context) error {
	if h.backfill == nil || h.SelfID() == "" || h.machine.Loading() {
		return nil
	}
	contactIDs, err := h.cache.ContactIDList(ctx)
	if err != nil {
		return err
	}
	roomIDs, err := h.cache.RoomIDList(ctx)
	if err != nil {
		return err
	}
	total := 0
	for _, id := range append(contactIDs, roomIDs...) {
		n, err := h.backfill.Backfill(ctx, id)
		if err != nil {
			h.logger.Warn("backfill failed", zap.String("chat", id), zap.Error(err))
			continue
		}
		total += n
	}
	if total > 0 {
		h.logger.Info("missed messages synced", zap.Int("messages", total))
	}
	return nil
}

// fireLogoutTimer hands the deferred logout to the event flow without
// blocking the timer goroutine. While the queue is full it retries every
// logoutRetry, so the logout is delayed rather than lost.
func (h *Handler) fireLogoutTimer(gen int) {
	select {
	case h.queue <- logoutTimerFired{gen: gen}:
		return
	default:
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if gen != h.logoutGen || h.logoutTimer == nil {
		return
	}
	h.logger.Warn("event queue full, deferred logout retried", zap.Duration("retry", logoutRetry))
	h.logoutTimer = time.AfterFunc(logoutRetry, func() { h.fireLogoutTimer(gen) })
}
