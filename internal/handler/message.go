package handler

import (
	"context"
	"fmt"
	"slices"

	"github.com/matheus3301/wpp-puppet/internal/model"
	"github.com/matheus3301/wpp-puppet/internal/parser"
	"github.com/matheus3301/wpp-puppet/internal/wa"
	"go.uber.org/zap"
)

// RevokedSuffix is appended to the original message id to key the
// revocation notice, since the provider reuses the original id for it.
const RevokedSuffix = "_revoked"

// ProcessMessage runs msg through the inbound pipeline: noise filter,
// de-duplication, persistence, friendship and invite detection, emission.
// Processing the same message twice emits it once.
func (h *Handler) ProcessMessage(ctx context.Context, msg *wa.Message) error {
	h.pipeMu.Lock()
	defer h.pipeMu.Unlock()
	return h.processLocked(ctx, msg)
}

func (h *Handler) processLocked(ctx context.Context, msg *wa.Message) error {
	if msg == nil || isNoise(msg) {
		return nil
	}
	id := msg.ID.ID
	if id == "" {
		return fmt.Errorf("message without id from %s", msg.From)
	}

	prior, err := h.cache.Message(ctx, id)
	if err != nil {
		return err
	}
	if prior != nil {
		h.logger.Debug("duplicate message", zap.String("msg_id", id))
		return nil
	}
	if err := h.cache.SetMessage(ctx, id, msg); err != nil {
		return fmt.Errorf("store message: %w", err)
	}
	if err := h.detectFriendship(ctx, msg); err != nil {
		h.logger.Warn("friendship detection failed", zap.String("msg_id", id), zap.Error(err))
	}

	if inv, ok := parser.DetectInvite(msg); ok {
		if err := h.cache.SetRoomInvitation(ctx, inv.ID, inv); err != nil {
			return fmt.Errorf("store invitation: %w", err)
		}
		h.bus.Emit(model.KindRoomInvite, model.RoomInviteEvent{RoomInvitationID: inv.ID})
		return nil
	}

	h.bus.Emit(model.KindMessage, model.MessageEvent{MessageID: id})
	return nil
}

// isNoise reports the two known junk shapes: multi-card containers (each
// card also arrives on its own) and empty system notifications.
func isNoise(msg *wa.Message) bool {
	if msg.Type == wa.MessageTypeMultiContactCard {
		return true
	}
	switch msg.Type {
	case wa.MessageTypeNotification, wa.MessageTypeGroupNotify:
		return msg.Body == "" && msg.Author == ""
	}
	return false
}

// detectFriendship treats the first direct message of an unknown individual
// as a friend request.
func (h *Handler) detectFriendship(ctx context.Context, msg *wa.Message) error {
	if msg.FromMe || wa.IsRoomID(msg.ID.Remote()) || !wa.IsContactID(msg.From) {
		return nil
	}
	known, err := h.cache.ContactIDList(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(known, msg.From) {
		return nil
	}

	f := parser.GenFriendship(msg)
	h.bus.Emit(model.KindFriendship, model.FriendshipEvent{FriendshipID: f.ID})

	c, err := h.transport.ContactByID(ctx, msg.From)
	if err != nil || c == nil {
		c = &wa.Contact{ID: msg.From, IsUser: true}
	}
	c.Avatar = ""
	return h.cache.SetContactOrRoom(ctx, msg.From, c)
}

// onMessageCreate sees every message, including the bot's own. Only own
// messages matter here; inbound ones arrive as MessageEvent as well. Own
// media that is already retrievable is emitted at once; otherwise it is
// stored silently and emitted by the ack rule later.
func (h *Handler) onMessageCreate(ctx context.Context, msg *wa.Message) error {
	if msg == nil || !msg.FromMe {
		return nil
	}
	if !msg.Type.IsMedia() {
		return h.ProcessMessage(ctx, msg)
	}

	h.pipeMu.Lock()
	defer h.pipeMu.Unlock()
	prior, err := h.cache.Message(ctx, msg.ID.ID)
	if err != nil || prior != nil {
		return err
	}
	if retrievable(msg) {
		return h.applyAck(ctx, nil, msg)
	}
	return h.cache.SetMessage(ctx, msg.ID.ID, msg)
}

// retrievable reports whether a media message can be downloaded by the
// receiver yet.
func retrievable(m *wa.Message) bool {
	return (m.Ack == wa.AckServer && m.MediaUploaded) || m.Ack >= wa.AckDevice
}

func (h *Handler) onMessageAck(ctx context.Context, id string, ack wa.AckLevel, msg *wa.Message) error {
	h.pipeMu.Lock()
	defer h.pipeMu.Unlock()

	prior, err := h.cache.Message(ctx, id)
	if err != nil {
		return err
	}
	var next wa.Message
	switch {
	case msg != nil:
		next = *msg
	case prior != nil:
		next = *prior
	default:
		h.logger.Debug("ack for unknown message", zap.String("msg_id", id))
		return nil
	}
	if !next.FromMe {
		return nil
	}
	next.ID.ID = id
	next.Ack = ack
	if prior != nil && prior.MediaUploaded {
		next.MediaUploaded = true
	}

	if ack == wa.AckError {
		h.pool.Reject(id, fmt.Errorf("message %s: %w", id, ErrDeliveryFailed))
		return h.cache.SetMessage(ctx, id, &next)
	}
	return h.applyAck(ctx, prior, &next)
}

// applyAck persists an own message at its new ack level and emits it the
// first time it becomes visible: at once for text, once retrievable for
// media.
func (h *Handler) applyAck(ctx context.Context, prior, next *wa.Message) error {
	media := next.Type.IsMedia()
	if media && !retrievable(next) {
		return nil
	}
	if err := h.cache.SetMessage(ctx, next.ID.ID, next); err != nil {
		return fmt.Errorf("store message: %w", err)
	}
	h.pool.Resolve(next.ID.ID)

	if prior == nil || (media && !retrievable(prior)) {
		h.bus.Emit(model.KindMessage, model.MessageEvent{MessageID: next.ID.ID})
	}
	return nil
}

func (h *Handler) onMediaUploaded(ctx context.Context, msg *wa.Message) error {
	if msg == nil || !msg.FromMe {
		return nil
	}
	h.pipeMu.Lock()
	defer h.pipeMu.Unlock()

	id := msg.ID.ID
	prior, err := h.cache.Message(ctx, id)
	if err != nil {
		return err
	}
	next := *msg
	if prior != nil {
		next = *prior
	}
	next.MediaUploaded = true
	if prior == nil || !retrievable(&next) {
		// Nothing to emit yet; remember the upload for the next ack.
		return h.cache.SetMessage(ctx, id, &next)
	}
	return h.applyAck(ctx, prior, &next)
}

// onRevokeEveryone emits the revocation notice under a derived id whose
// body names the original message.
func (h *Handler) onRevokeEveryone(ctx context.Context, e wa.MessageRevokeEveryoneEvent) error {
	if e.Revoked == nil {
		return nil
	}
	origID := e.Revoked.ID.ID
	if e.Original != nil && e.Original.ID.ID != "" {
		origID = e.Original.ID.ID
	}

	notice := *e.Revoked
	notice.ID.ID = origID + RevokedSuffix
	notice.ID.Serialized = wa.SerializeKey(notice.ID.FromMe, notice.ID.Remote(), notice.ID.ID)
	notice.Type = wa.MessageTypeRevoked
	notice.Body = origID
	if e.Original != nil {
		notice.Author, notice.From, notice.To = e.Original.Author, e.Original.From, e.Original.To
		notice.FromMe = e.Original.FromMe
	}

	h.pipeMu.Lock()
	defer h.pipeMu.Unlock()
	prior, err := h.cache.Message(ctx, notice.ID.ID)
	if err != nil || prior != nil {
		return err
	}
	if err := h.cache.SetMessage(ctx, notice.ID.ID, &notice); err != nil {
		return fmt.Errorf("store revocation: %w", err)
	}
	h.bus.Emit(model.KindMessage, model.MessageEvent{MessageID: notice.ID.ID})
	return nil
}
