package parser

import (
	"github.com/matheus3301/wpp-puppet/internal/errs"
	"github.com/matheus3301/wpp-puppet/internal/model"
	"github.com/matheus3301/wpp-puppet/internal/wa"
)

// ParseMessage builds the canonical message. A message belongs to a room
// when its remote address is a room id; otherwise it is a direct message to
// raw.To.
func ParseMessage(raw *wa.Message) (*model.Message, error) {
	talker := raw.Author
	if talker == "" {
		talker = raw.From
	}
	if talker == "" {
		return nil, errs.New(errs.CodeMessageNotFound, "no talker for %s", raw.ID.Serialized)
	}

	var roomID, listenerID string
	if remote := raw.ID.Remote(); wa.IsRoomID(remote) {
		roomID = remote
	} else {
		listenerID = raw.To
	}
	if roomID == "" && listenerID == "" {
		return nil, errs.New(errs.CodeMessageNotFound, "no room or listener for %s", raw.ID.Serialized)
	}

	msg := &model.Message{
		ID:            raw.ID.ID,
		Type:          MessageType(raw),
		TalkerID:      talker,
		RoomID:        roomID,
		ListenerID:    listenerID,
		Text:          raw.Body,
		Timestamp:     raw.Timestamp,
		MentionIDList: raw.MentionedIDs,
	}
	if msg.Type == model.MessageTypeAttachment {
		msg.Filename = raw.Title
	}
	return msg, nil
}

// MessageType maps the provider type tag plus contextual flags onto the
// canonical type. Status posts win over the base type.
func MessageType(raw *wa.Message) model.MessageType {
	switch raw.Type {
	case wa.MessageTypeText:
		switch {
		case raw.IsStatus:
			return model.MessageTypePost
		case raw.Title != "" || raw.Description != "":
			return model.MessageTypeURL
		default:
			return model.MessageTypeText
		}
	case wa.MessageTypeImage:
		if raw.IsStatus {
			return model.MessageTypePost
		}
		return model.MessageTypeImage
	case wa.MessageTypeVideo:
		if raw.IsStatus {
			return model.MessageTypePost
		}
		return model.MessageTypeVideo
	case wa.MessageTypeAudio, wa.MessageTypeVoice:
		return model.MessageTypeAudio
	case wa.MessageTypeDocument:
		return model.MessageTypeAttachment
	case wa.MessageTypeSticker:
		return model.MessageTypeEmoticon
	case wa.MessageTypeLocation:
		return model.MessageTypeLocation
	case wa.MessageTypeContactCard, wa.MessageTypeMultiContactCard:
		return model.MessageTypeContact
	case wa.MessageTypeRevoked:
		return model.MessageTypeRecalled
	case wa.MessageTypeGroupInvite:
		return model.MessageTypeGroupNote
	default:
		return model.MessageTypeUnknown
	}
}
