package parser

import (
	"github.com/matheus3301/wpp-puppet/internal/model"
	"github.com/matheus3301/wpp-puppet/internal/wa"
)

// GenRoomTopicEvent builds the topic change carried by a subject
// notification. old must be the room as it was before n is applied.
func GenRoomTopicEvent(n *wa.GroupNotification, old *model.Room) model.RoomTopicEvent {
	evt := model.RoomTopicEvent{
		RoomID:    n.ChatID,
		ChangerID: n.Author,
		NewTopic:  n.Body,
		Timestamp: n.Timestamp,
	}
	if old != nil {
		evt.OldTopic = old.Topic
	}
	return evt
}

func GenRoomJoinEvent(n *wa.GroupNotification, memberIDs []string) model.RoomJoinEvent {
	return model.RoomJoinEvent{
		RoomID:        n.ChatID,
		InviterID:     n.Author,
		InviteeIDList: memberIDs,
		Timestamp:     n.Timestamp,
	}
}

func GenRoomLeaveEvent(n *wa.GroupNotification) model.RoomLeaveEvent {
	return model.RoomLeaveEvent{
		RoomID:        n.ChatID,
		RemoverID:     n.Author,
		RemoveeIDList: n.RecipientIDs,
		Timestamp:     n.Timestamp,
	}
}

// GenRoomAnnounce turns a description change into an ordinary text message
// from its author in the room, keyed by the notification id.
func GenRoomAnnounce(n *wa.GroupNotification, description string) *wa.Message {
	key := wa.MessageKey{
		RemoteRaw:  n.ChatID,
		ID:         n.ID.ID,
		Serialized: wa.SerializeKey(false, n.ChatID, n.ID.ID),
	}
	return &wa.Message{
		ID:        key,
		Ack:       wa.AckServer,
		Body:      description,
		Type:      wa.MessageTypeText,
		Timestamp: n.Timestamp,
		From:      n.ChatID,
		To:        n.ChatID,
		Author:    n.Author,
	}
}

// GenFriendship builds the friend request implied by the first message of
// an unknown individual. It shares the message's id.
func GenFriendship(raw *wa.Message) *model.Friendship {
	contact := raw.Author
	if contact == "" {
		contact = raw.From
	}
	return &model.Friendship{
		ID:        raw.ID.ID,
		ContactID: contact,
		Hello:     raw.Body,
		Type:      model.FriendshipTypeReceive,
		Timestamp: raw.Timestamp,
	}
}
