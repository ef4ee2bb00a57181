package handler

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/matheus3301/wpp-puppet/internal/model"
	"github.com/matheus3301/wpp-puppet/internal/parser"
	"github.com/matheus3301/wpp-puppet/internal/wa"
	"go.uber.org/zap"
)

func (h *Handler) onGroupJoin(ctx context.Context, n *wa.GroupNotification) error {
	if n == nil {
		return nil
	}
	if _, err := h.ensureRoom(ctx, n.ChatID); err != nil {
		return err
	}
	if err := h.cache.AddRoomMemberToList(ctx, n.ChatID, n.RecipientIDs...); err != nil {
		return fmt.Errorf("add members: %w", err)
	}
	h.bus.Emit(model.KindRoomJoin, parser.GenRoomJoinEvent(n, n.RecipientIDs))
	return nil
}

func (h *Handler) onGroupLeave(ctx context.Context, n *wa.GroupNotification) error {
	if n == nil {
		return nil
	}
	if slices.Contains(n.RecipientIDs, h.SelfID()) {
		if err := h.dropRoom(ctx, n.ChatID); err != nil {
			return err
		}
	} else if err := h.cache.RemoveRoomMemberFromList(ctx, n.ChatID, n.RecipientIDs...); err != nil {
		return fmt.Errorf("remove members: %w", err)
	}
	h.bus.Emit(model.KindRoomLeave, parser.GenRoomLeaveEvent(n))
	return nil
}

func (h *Handler) onGroupUpdate(ctx context.Context, n *wa.GroupNotification) error {
	if n == nil {
		return nil
	}
	raw, err := h.ensureRoom(ctx, n.ChatID)
	if err != nil {
		return err
	}
	// Snapshot before anything below mutates raw.
	old := &model.Room{ID: raw.ID, Topic: raw.Name, Avatar: raw.Avatar, OwnerID: raw.OwnerID}

	switch n.Type {
	case wa.NotificationSubject:
		evt := parser.GenRoomTopicEvent(n, old)
		raw.Name = n.Body
		if err := h.cache.SetContactOrRoom(ctx, raw.ID, raw); err != nil {
			return fmt.Errorf("store room: %w", err)
		}
		h.bus.Emit(model.KindRoomTopic, evt)

	case wa.NotificationDescription:
		raw.Description = n.Body
		if err := h.cache.SetContactOrRoom(ctx, raw.ID, raw); err != nil {
			return fmt.Errorf("store room: %w", err)
		}
		return h.ProcessMessage(ctx, parser.GenRoomAnnounce(n, n.Body))

	case wa.NotificationCreate:
		chat, err := h.transport.GroupChatByID(ctx, n.ChatID)
		if err != nil {
			return fmt.Errorf("get group: %w", err)
		}
		if chat == nil {
			return errors.New("get group: empty response")
		}
		ids := chat.ParticipantIDs()
		if err := h.cache.SetRoomMemberList(ctx, n.ChatID, ids); err != nil {
			return err
		}
		h.bus.Emit(model.KindRoomJoin, parser.GenRoomJoinEvent(n, ids))

	case wa.NotificationPicture:
		raw.Avatar = h.avatar(ctx, raw.ID)
		return h.cache.SetContactOrRoom(ctx, raw.ID, raw)

	default:
		h.logger.Debug("group update ignored", zap.String("room", n.ChatID), zap.String("type", string(n.Type)))
	}
	return nil
}

// ensureRoom returns the cached room payload, fetching and caching it with
// its member list first when the room is unknown.
func (h *Handler) ensureRoom(ctx context.Context, roomID string) (*wa.Contact, error) {
	if !wa.IsRoomID(roomID) {
		return nil, fmt.Errorf("not a room id: %q", roomID)
	}
	raw, err := h.cache.ContactOrRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		return raw, nil
	}

	chat, err := h.transport.GroupChatByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if chat == nil {
		return nil, errors.New("get group: empty response")
	}
	raw = &wa.Contact{ID: roomID, IsGroup: true}
	mergeGroup(raw, chat)
	raw.Avatar = h.avatar(ctx, roomID)

	if err := h.cache.SetContactOrRoom(ctx, roomID, raw); err != nil {
		return nil, fmt.Errorf("store room: %w", err)
	}
	if err := h.cache.SetRoomMemberList(ctx, roomID, chat.ParticipantIDs()); err != nil {
		return nil, fmt.Errorf("store members: %w", err)
	}
	h.logger.Debug("room cached", zap.String("room", roomID), zap.Int("members", len(chat.Participants)))
	return raw, nil
}

func (h *Handler) dropRoom(ctx context.Context, roomID string) error {
	return errors.Join(
		h.cache.DeleteContactOrRoom(ctx, roomID),
		h.cache.DeleteRoomMemberList(ctx, roomID),
	)
}

func mergeGroup(raw *wa.Contact, chat *wa.GroupChat) {
	raw.IsGroup = true
	if chat.Name != "" {
		raw.Name = chat.Name
	}
	if chat.Description != "" {
		raw.Description = chat.Description
	}
	if chat.OwnerID != "" {
		raw.OwnerID = chat.OwnerID
	}
}
