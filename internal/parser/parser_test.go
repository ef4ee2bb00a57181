package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/matheus3301/wpp-puppet/internal/errs"
	"github.com/matheus3301/wpp-puppet/internal/model"
	"github.com/matheus3301/wpp-puppet/internal/wa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoomMessage(t *testing.T) {
	raw := &wa.Message{
		ID: wa.MessageKey{
			RemoteJID: &wa.JID{Server: "g.us", User: "120363039010379837", Serialized: "120363039010379837@g.us"},
			ID:        "3EB0C767D26A1D8D",
		},
		Type:   wa.MessageTypeText,
		From:   "120363039010379837@g.us",
		To:     "8618710175700@c.us",
		Author: "8613812345678@c.us",
		Body:   "hello",
	}

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "120363039010379837@g.us", msg.RoomID)
	assert.Empty(t, msg.ListenerID)
	assert.Equal(t, "8613812345678@c.us", msg.TalkerID)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, model.MessageTypeText, msg.Type)
	assert.Equal(t, "3EB0C767D26A1D8D", msg.ID)
}

func TestParseDirectMessage(t *testing.T) {
	raw := &wa.Message{
		ID:     wa.MessageKey{FromMe: true, RemoteRaw: "8618710175700@c.us", ID: "ABC"},
		Type:   wa.MessageTypeText,
		From:   "8613812345678@c.us",
		To:     "8618710175700@c.us",
		FromMe: true,
		Body:   "hi",
	}

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "8618710175700@c.us", msg.ListenerID)
	assert.Empty(t, msg.RoomID)
	assert.Equal(t, "8613812345678@c.us", msg.TalkerID)
}

func TestParseMessageNotFound(t *testing.T) {
	tests := []struct {
		name string
		raw  *wa.Message
	}{
		{"no talker", &wa.Message{ID: wa.MessageKey{RemoteRaw: "1@c.us"}, To: "1@c.us"}},
		{"no room or listener", &wa.Message{ID: wa.MessageKey{RemoteRaw: "1@c.us"}, From: "2@c.us"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage(tt.raw)
			assert.True(t, errors.Is(err, errs.ErrMessageNotFound), "got %v", err)
		})
	}
}

func TestMessageType(t *testing.T) {
	tests := []struct {
		name string
		raw  wa.Message
		want model.MessageType
	}{
		{"text", wa.Message{Type: wa.MessageTypeText}, model.MessageTypeText},
		{"link preview", wa.Message{Type: wa.MessageTypeText, Title: "Go"}, model.MessageTypeURL},
		{"link description only", wa.Message{Type: wa.MessageTypeText, Description: "d"}, model.MessageTypeURL},
		{"status text", wa.Message{Type: wa.MessageTypeText, IsStatus: true, Title: "x"}, model.MessageTypePost},
		{"image", wa.Message{Type: wa.MessageTypeImage}, model.MessageTypeImage},
		{"status image", wa.Message{Type: wa.MessageTypeImage, IsStatus: true}, model.MessageTypePost},
		{"status video", wa.Message{Type: wa.MessageTypeVideo, IsStatus: true}, model.MessageTypePost},
		{"video", wa.Message{Type: wa.MessageTypeVideo}, model.MessageTypeVideo},
		{"audio", wa.Message{Type: wa.MessageTypeAudio}, model.MessageTypeAudio},
		{"voice", wa.Message{Type: wa.MessageTypeVoice}, model.MessageTypeAudio},
		{"document", wa.Message{Type: wa.MessageTypeDocument}, model.MessageTypeAttachment},
		{"sticker", wa.Message{Type: wa.MessageTypeSticker}, model.MessageTypeEmoticon},
		{"location", wa.Message{Type: wa.MessageTypeLocation}, model.MessageTypeLocation},
		{"vcard", wa.Message{Type: wa.MessageTypeContactCard}, model.MessageTypeContact},
		{"revoked", wa.Message{Type: wa.MessageTypeRevoked}, model.MessageTypeRecalled},
		{"invite", wa.Message{Type: wa.MessageTypeGroupInvite}, model.MessageTypeGroupNote},
		{"call log", wa.Message{Type: wa.MessageTypeCallLog}, model.MessageTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MessageType(&tt.raw))
		})
	}
}

func TestParseContact(t *testing.T) {
	tests := []struct {
		name     string
		raw      wa.Contact
		userName string
		wantName string
		wantType model.ContactType
		friend   bool
	}{
		{"push name first", wa.Contact{ID: "1@c.us", PushName: "Ann", Name: "Anna", IsUser: true, IsMyContact: true}, "", "Ann", model.ContactTypeIndividual, true},
		{"display name fallback", wa.Contact{ID: "1@c.us", Name: "Anna", IsUser: true}, "", "Anna", model.ContactTypeIndividual, false},
		{"id fallback", wa.Contact{ID: "1@c.us", IsMyContact: true}, "", "1@c.us", model.ContactTypeUnknown, false},
		{"enterprise", wa.Contact{ID: "2@c.us", PushName: "Shop", IsEnterprise: true}, "", "Shop", model.ContactTypeCorporation, false},
		{"self override", wa.Contact{ID: "3@c.us", PushName: "me", IsMe: true, IsUser: true}, "Bot", "Bot", model.ContactTypeIndividual, false},
		{"self push name", wa.Contact{ID: "3@c.us", PushName: "me", IsMe: true}, "", "me", model.ContactTypeUnknown, false},
		{"self reserved push name", wa.Contact{ID: "3@c.us", PushName: ReservedPushName, ShortName: "Bo", IsMe: true}, "", "Bo", model.ContactTypeUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ParseContact(&tt.raw, tt.userName)
			assert.Equal(t, tt.wantName, c.Name)
			assert.Equal(t, tt.wantType, c.Type)
			assert.Equal(t, tt.friend, c.Friend)
			assert.Equal(t, tt.raw.ID, c.ID)
		})
	}
}

func TestParseRoom(t *testing.T) {
	raw := &wa.Contact{ID: "9@g.us", Name: "cached", IsGroup: true, Avatar: "https://pps/9"}
	chat := &wa.GroupChat{
		ID:      "9@g.us",
		OwnerID: "1@c.us",
		Participants: []wa.GroupParticipant{
			{ID: "1@c.us", IsSuperAdmin: true},
			{ID: "2@c.us", IsAdmin: true},
			{ID: "3@c.us"},
		},
	}

	room, err := ParseRoom(raw, chat)
	require.NoError(t, err)
	assert.Equal(t, "cached", room.Topic)
	assert.Equal(t, []string{"1@c.us", "2@c.us", "3@c.us"}, room.MemberIDList)
	assert.Equal(t, []string{"1@c.us", "2@c.us"}, room.AdminIDList)
	assert.Equal(t, "https://pps/9", room.Avatar)

	chat.Name = "fresh"
	room, err = ParseRoom(raw, chat)
	require.NoError(t, err)
	assert.Equal(t, "fresh", room.Topic)
}

func TestParseRoomTopicFallbacks(t *testing.T) {
	chat := &wa.GroupChat{Participants: []wa.GroupParticipant{{ID: "1@c.us"}}}

	room, err := ParseRoom(&wa.Contact{ID: "9@g.us", PushName: "pushed"}, chat)
	require.NoError(t, err)
	assert.Equal(t, "pushed", room.Topic)

	room, err = ParseRoom(&wa.Contact{ID: "9@g.us"}, chat)
	require.NoError(t, err)
	assert.Equal(t, "", room.Topic)
}

func TestParseRoomWithoutParticipants(t *testing.T) {
	_, err := ParseRoom(&wa.Contact{ID: "9@g.us"}, &wa.GroupChat{ID: "9@g.us"})
	assert.True(t, errors.Is(err, errs.ErrRoomNotFound))

	_, err = ParseRoom(&wa.Contact{ID: "9@g.us"}, nil)
	assert.True(t, errors.Is(err, errs.ErrRoomNotFound))
}

func TestIDClassificationIsExclusive(t *testing.T) {
	for _, id := range []string{"1@c.us", "120363039010379837@g.us", "status@broadcast", ""} {
		assert.False(t, wa.IsRoomID(id) && wa.IsContactID(id), id)
	}
}

const singleCard = "BEGIN:VCARD\n" +
	"VERSION:3.0\n" +
	"N:;Tim;;;\n" +
	"FN:Tim\n" +
	"item1.TEL;waid=8613240330438:+86 132 4033 0438\n" +
	"item1.X-ABLabel:Mobile\n" +
	"END:VCARD"

func TestParseVCardSinglePhone(t *testing.T) {
	card, err := ParseVCard(singleCard)
	require.NoError(t, err)
	require.Len(t, card.TEL, 1)
	assert.Equal(t, "8613240330438@c.us", card.TEL[0].WAID)
	assert.Equal(t, "+86 132 4033 0438", card.TEL[0].Number)
	assert.Equal(t, "8613240330438@c.us", card.ContactID())
	assert.Equal(t, "Tim", card.Name)
}

func TestParseVCardMultiplePhones(t *testing.T) {
	text := strings.Replace(singleCard, "END:VCARD",
		"item2.TEL;waid=8613812345678:+86 138 1234 5678\nEND:VCARD", 1)

	_, err := ParseVCard(text)
	assert.True(t, errors.Is(err, errs.ErrContactCardParse), "got %v", err)
}

func TestParseVCardWithoutPhone(t *testing.T) {
	_, err := ParseVCard("BEGIN:VCARD\nVERSION:3.0\nFN:Nobody\nEND:VCARD")
	assert.True(t, errors.Is(err, errs.ErrContactCardParse))
}

func TestBuildVCardRoundTrip(t *testing.T) {
	text, err := BuildVCard(&wa.Contact{ID: "8613240330438@c.us", PushName: "Tim"})
	require.NoError(t, err)

	card, err := ParseVCard(text)
	require.NoError(t, err)
	assert.Equal(t, "8613240330438@c.us", card.ContactID())
	assert.Equal(t, "Tim", card.Name)
}

func TestInviteCodes(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"join https://chat.whatsapp.com/KbQ3nYxQeWd2vB8RT5Hk9J now", []string{"KbQ3nYxQeWd2vB8RT5Hk9J"}},
		{"http://chat.whatsapp.com/invite/KbQ3nYxQeWd2vB8RT5Hk9J", []string{"KbQ3nYxQeWd2vB8RT5Hk9J"}},
		{"https://chat.whatsapp.com/short", nil},
		{"https://example.com/KbQ3nYxQeWd2vB8RT5Hk9J", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InviteCodes(tt.text), tt.text)
	}
}

func TestDetectInvite(t *testing.T) {
	link := "https://chat.whatsapp.com/KbQ3nYxQeWd2vB8RT5Hk9J"

	inv, ok := DetectInvite(&wa.Message{Type: wa.MessageTypeText, From: "1@c.us", To: "2@c.us", Body: "come " + link, Timestamp: 7})
	require.True(t, ok)
	assert.Equal(t, "KbQ3nYxQeWd2vB8RT5Hk9J", inv.ID)
	assert.Equal(t, "1@c.us", inv.InviterID)
	assert.Equal(t, "2@c.us", inv.ReceiverID)
	assert.Equal(t, int64(7), inv.Timestamp)

	_, ok = DetectInvite(&wa.Message{Type: wa.MessageTypeText, Body: link + " " + link})
	assert.False(t, ok, "two links are an ordinary message")

	_, ok = DetectInvite(&wa.Message{Type: wa.MessageTypeImage, Body: link})
	assert.False(t, ok)

	inv, ok = DetectInvite(&wa.Message{
		Type:     wa.MessageTypeGroupInvite,
		Author:   "3@c.us",
		From:     "9@g.us",
		InviteV4: &wa.InviteV4{InviteCode: "v4code", GroupName: "Gophers"},
	})
	require.True(t, ok)
	assert.Equal(t, "v4code", inv.ID)
	assert.Equal(t, "3@c.us", inv.InviterID)
	assert.Equal(t, "Gophers", ParseRoomInvitation(inv).Topic)
}

func TestGenerators(t *testing.T) {
	n := &wa.GroupNotification{
		ID:           wa.MessageKey{ID: "n1"},
		ChatID:       "9@g.us",
		Author:       "1@c.us",
		Body:         "new topic",
		Timestamp:    42,
		RecipientIDs: []string{"2@c.us"},
	}

	topic := GenRoomTopicEvent(n, &model.Room{Topic: "old topic"})
	assert.Equal(t, model.RoomTopicEvent{RoomID: "9@g.us", ChangerID: "1@c.us", OldTopic: "old topic", NewTopic: "new topic", Timestamp: 42}, topic)
	assert.Empty(t, GenRoomTopicEvent(n, nil).OldTopic)

	join := GenRoomJoinEvent(n, []string{"2@c.us", "3@c.us"})
	assert.Equal(t, []string{"2@c.us", "3@c.us"}, join.InviteeIDList)
	assert.Equal(t, "1@c.us", join.InviterID)

	leave := GenRoomLeaveEvent(n)
	assert.Equal(t, []string{"2@c.us"}, leave.RemoveeIDList)

	announce := GenRoomAnnounce(n, "read the rules")
	msg, err := ParseMessage(announce)
	require.NoError(t, err)
	assert.Equal(t, "9@g.us", msg.RoomID)
	assert.Equal(t, "1@c.us", msg.TalkerID)
	assert.Equal(t, "read the rules", msg.Text)
	assert.Equal(t, model.MessageTypeText, msg.Type)
	assert.Equal(t, "n1", msg.ID)
}

func TestGenFriendship(t *testing.T) {
	f := GenFriendship(&wa.Message{ID: wa.MessageKey{ID: "m1"}, From: "5@c.us", Body: "hi there", Timestamp: 3})
	assert.Equal(t, &model.Friendship{ID: "m1", ContactID: "5@c.us", Hello: "hi there", Type: model.FriendshipTypeReceive, Timestamp: 3}, f)
}
