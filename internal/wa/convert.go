package wa

import (
	"context"
	"strings"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

// ToID renders a whatsmeow JID as a canonical id: individuals end in @c.us,
// groups in @g.us. Device suffixes are dropped.
func ToID(jid types.JID) string {
	jid = jid.ToNonAD()
	switch jid.Server {
	case types.DefaultUserServer:
		return jid.User + ContactSuffix
	case types.GroupServer:
		return jid.User + RoomSuffix
	}
	return jid.String()
}

// ToJID parses a canonical id back into a whatsmeow JID.
func ToJID(id string) (types.JID, error) {
	switch {
	case IsContactID(id):
		return types.NewJID(strings.TrimSuffix(id, ContactSuffix), types.DefaultUserServer), nil
	case IsRoomID(id):
		return types.NewJID(strings.TrimSuffix(id, RoomSuffix), types.GroupServer), nil
	}
	return types.ParseJID(id)
}

func toJIDs(ids []string) ([]types.JID, error) {
	jids := make([]types.JID, 0, len(ids))
	for _, id := range ids {
		jid, err := ToJID(id)
		if err != nil {
			return nil, err
		}
		jids = append(jids, jid)
	}
	return jids, nil
}

// id renders jid after resolving hidden-user (LID) addresses to the phone
// number they stand for.
func (a *Adapter) id(ctx context.Context, jid types.JID) string {
	return ToID(a.ResolveLID(ctx, jid))
}

// convertMessage builds the raw payload of a whatsmeow message. Incoming
// messages are addressed chat -> self, own messages self -> chat; in groups
// the sender becomes the author.
func (a *Adapter) convertMessage(ctx context.Context, info types.MessageInfo, m *waE2E.Message) *Message {
	chat := a.id(ctx, info.Chat)
	self := a.selfID()

	msg := &Message{
		ID:        MessageKey{FromMe: info.IsFromMe, RemoteRaw: chat, ID: info.ID, Serialized: SerializeKey(info.IsFromMe, chat, info.ID)},
		Ack:       AckDevice,
		Timestamp: info.Timestamp.Unix(),
		FromMe:    info.IsFromMe,
		IsStatus:  info.Chat == types.StatusBroadcastJID,
		Broadcast: info.Chat.Server == types.BroadcastServer,
		Source:    m,
	}
	if info.IsFromMe {
		msg.Ack = AckServer
		msg.From, msg.To = self, chat
	} else {
		msg.From, msg.To = chat, self
	}
	if info.IsGroup && !info.Sender.IsEmpty() {
		msg.Author = a.id(ctx, info.Sender)
	}
	fillContent(msg, m)

	if v4 := msg.InviteV4; v4 != nil {
		v4.FromID = msg.From
		if msg.Author != "" {
			v4.FromID = msg.Author
		}
		v4.ToID = msg.To
	}
	return msg
}

// fillContent sets the type tag and the type-specific fields of msg. Media
// carrying a direct path is already on the media servers.
func fillContent(msg *Message, m *waE2E.Message) {
	msg.Type = MessageTypeUnknown
	if m == nil {
		return
	}

	switch {
	case m.GetConversation() != "":
		msg.Type = MessageTypeText
		msg.Body = m.GetConversation()

	case m.GetExtendedTextMessage() != nil:
		ext := m.GetExtendedTextMessage()
		msg.Type = MessageTypeText
		msg.Body = ext.GetText()
		msg.Title = ext.GetTitle()
		msg.Description = ext.GetDescription()
		if link := ext.GetMatchedText(); link != "" {
			msg.Links = append(msg.Links, Link{Link: link})
		}
		msg.MentionedIDs = mentions(ext.GetContextInfo())
		msg.HasQuotedMsg = ext.GetContextInfo().GetQuotedMessage() != nil
		msg.IsForwarded = ext.GetContextInfo().GetIsForwarded()

	case m.GetImageMessage() != nil:
		img := m.GetImageMessage()
		msg.Type = MessageTypeImage
		msg.HasMedia = true
		msg.MediaUploaded = img.GetDirectPath() != ""
		msg.Body = img.GetCaption()
		msg.MentionedIDs = mentions(img.GetContextInfo())

	case m.GetVideoMessage() != nil:
		vid := m.GetVideoMessage()
		msg.Type = MessageTypeVideo
		msg.HasMedia = true
		msg.MediaUploaded = vid.GetDirectPath() != ""
		msg.Body = vid.GetCaption()
		msg.MentionedIDs = mentions(vid.GetContextInfo())

	case m.GetAudioMessage() != nil:
		aud := m.GetAudioMessage()
		msg.Type = MessageTypeAudio
		if aud.GetPTT() {
			msg.Type = MessageTypeVoice
		}
		msg.HasMedia = true
		msg.MediaUploaded = aud.GetDirectPath() != ""

	case m.GetDocumentMessage() != nil:
		doc := m.GetDocumentMessage()
		msg.Type = MessageTypeDocument
		msg.HasMedia = true
		msg.MediaUploaded = doc.GetDirectPath() != ""
		msg.Body = doc.GetCaption()
		msg.Title = doc.GetFileName()
		if msg.Title == "" {
			msg.Title = doc.GetTitle()
		}

	case m.GetStickerMessage() != nil:
		msg.Type = MessageTypeSticker
		msg.HasMedia = true
		msg.MediaUploaded = m.GetStickerMessage().GetDirectPath() != ""

	case m.GetContactMessage() != nil:
		msg.Type = MessageTypeContactCard
		msg.Body = m.GetContactMessage().GetVcard()
		msg.VCards = []string{msg.Body}

	case m.GetContactsArrayMessage() != nil:
		msg.Type = MessageTypeMultiContactCard
		for _, c := range m.GetContactsArrayMessage().GetContacts() {
			msg.VCards = append(msg.VCards, c.GetVcard())
		}

	case m.GetLocationMessage() != nil:
		loc := m.GetLocationMessage()
		msg.Type = MessageTypeLocation
		msg.Location = &Location{
			Latitude:    loc.GetDegreesLatitude(),
			Longitude:   loc.GetDegreesLongitude(),
			Description: loc.GetName(),
		}

	case m.GetGroupInviteMessage() != nil:
		inv := m.GetGroupInviteMessage()
		msg.Type = MessageTypeGroupInvite
		msg.Body = inv.GetCaption()
		groupID := inv.GetGroupJID()
		if jid, err := types.ParseJID(groupID); err == nil {
			groupID = ToID(jid)
		}
		msg.InviteV4 = &InviteV4{
			InviteCode:           inv.GetInviteCode(),
			InviteCodeExpiration: inv.GetInviteExpiration(),
			GroupID:              groupID,
			GroupName:            inv.GetGroupName(),
			Comment:              inv.GetCaption(),
		}

	case m.GetPollCreationMessage() != nil:
		msg.Type = MessageTypePoll
		msg.Body = m.GetPollCreationMessage().GetName()
	}
}

func mentions(ci *waE2E.ContextInfo) []string {
	var ids []string
	for _, raw := range ci.GetMentionedJID() {
		if jid, err := types.ParseJID(raw); err == nil {
			ids = append(ids, ToID(jid))
		}
	}
	return ids
}

// revokedKey returns the key of the message a revoke protocol message
// retracts.
func revokedKey(m *waE2E.Message) (string, bool) {
	pm := m.GetProtocolMessage()
	if pm == nil || pm.GetType() != waE2E.ProtocolMessage_REVOKE {
		return "", false
	}
	id := pm.GetKey().GetID()
	return id, id != ""
}

// ackFromReceipt maps a receipt to an ack level. Receipts with no delivery
// meaning report false.
func ackFromReceipt(t types.ReceiptType) (AckLevel, bool) {
	switch t {
	case types.ReceiptTypeDelivered:
		return AckDevice, true
	case types.ReceiptTypeRead, types.ReceiptTypeReadSelf:
		return AckRead, true
	case types.ReceiptTypePlayed:
		return AckPlayed, true
	case types.ReceiptTypeServerError:
		return AckError, true
	}
	return 0, false
}

// convertGroup builds the group detail. Participants reported by hidden
// address are resolved to their phone number when known.
func (a *Adapter) convertGroup(ctx context.Context, info *types.GroupInfo) *GroupChat {
	g := &GroupChat{
		ID:          ToID(info.JID),
		Name:        info.Name,
		Description: info.Topic,
		CreatedAt:   info.GroupCreated.Unix(),
	}
	if !info.OwnerJID.IsEmpty() {
		g.OwnerID = a.id(ctx, info.OwnerJID)
	}
	for _, p := range info.Participants {
		jid := p.JID
		if jid.Server == types.HiddenUserServer && !p.PhoneNumber.IsEmpty() {
			jid = p.PhoneNumber
		}
		g.Participants = append(g.Participants, GroupParticipant{
			ID:           a.id(ctx, jid),
			IsAdmin:      p.IsAdmin,
			IsSuperAdmin: p.IsSuperAdmin,
		})
	}
	return g
}

func groupContact(g *GroupChat) *Contact {
	return &Contact{ID: g.ID, Name: g.Name, Description: g.Description, OwnerID: g.OwnerID, IsGroup: true}
}

// convertContact builds the raw payload of an address book entry.
func convertContact(jid types.JID, info types.ContactInfo) Contact {
	return Contact{
		ID:          ToID(jid),
		Number:      jid.User,
		Name:        info.FullName,
		PushName:    info.PushName,
		ShortName:   info.FirstName,
		IsBusiness:  info.BusinessName != "",
		IsUser:      true,
		IsMyContact: info.FullName != "",
		IsWAContact: true,
	}
}

// buildMessage turns outbound content into the protobuf message.
func buildMessage(content Content) *waE2E.Message {
	switch {
	case content.ContactCard != "":
		return &waE2E.Message{ContactMessage: &waE2E.ContactMessage{
			DisplayName: proto.String(vcardName(content.ContactCard)),
			Vcard:       proto.String(content.ContactCard),
		}}
	case content.Location != nil:
		return &waE2E.Message{LocationMessage: &waE2E.LocationMessage{
			DegreesLatitude:  proto.Float64(content.Location.Latitude),
			DegreesLongitude: proto.Float64(content.Location.Longitude),
			Name:             proto.String(content.Location.Description),
		}}
	}
	return &waE2E.Message{Conversation: proto.String(content.Text)}
}

// vcardName pulls the FN line out of a card for the message preview.
func vcardName(card string) string {
	for _, line := range strings.Split(card, "\n") {
		line = strings.TrimRight(line, "\r")
		if name, ok := strings.CutPrefix(line, "FN:"); ok {
			return name
		}
	}
	return ""
}
