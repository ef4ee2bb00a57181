package parser

import (
	"github.com/matheus3301/wpp-puppet/internal/errs"
	"github.com/matheus3301/wpp-puppet/internal/model"
	"github.com/matheus3301/wpp-puppet/internal/wa"
)

// ParseRoom builds the canonical room from the cached contact-shaped payload
// and the group detail. A group with no participants is a failed sync, not
// an empty room.
func ParseRoom(raw *wa.Contact, chat *wa.GroupChat) (*model.Room, error) {
	if chat == nil || len(chat.Participants) == 0 {
		return nil, errs.New(errs.CodeRoomNotFound, "no participants for %s", raw.ID)
	}

	room := &model.Room{
		ID:           raw.ID,
		Topic:        roomTopic(raw, chat),
		Avatar:       raw.Avatar,
		OwnerID:      chat.OwnerID,
		MemberIDList: chat.ParticipantIDs(),
	}
	if room.OwnerID == "" {
		room.OwnerID = raw.OwnerID
	}
	for _, p := range chat.Participants {
		if p.IsAdmin || p.IsSuperAdmin {
			room.AdminIDList = append(room.AdminIDList, p.ID)
		}
	}
	return room, nil
}

func roomTopic(raw *wa.Contact, chat *wa.GroupChat) string {
	switch {
	case chat.Name != "":
		return chat.Name
	case raw.Name != "":
		return raw.Name
	default:
		return raw.PushName
	}
}
