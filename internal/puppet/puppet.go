// Package puppet is the surface handed to the bot framework: payload queries
// read through the cache, commands go to the transport.
package puppet

import (
	"context"
	"fmt"
	"slices"

	"github.com/matheus3301/wpp-puppet/internal/bus"
	"github.com/matheus3301/wpp-puppet/internal/cache"
	"github.com/matheus3301/wpp-puppet/internal/errs"
	"github.com/matheus3301/wpp-puppet/internal/model"
	"github.com/matheus3301/wpp-puppet/internal/outbox"
	"github.com/matheus3301/wpp-puppet/internal/parser"
	"github.com/matheus3301/wpp-puppet/internal/wa"
	"go.uber.org/zap"
)

// InviteLinkPrefix turns an invite code into a shareable link.
const InviteLinkPrefix = "https://chat.whatsapp.com/"

// Puppet answers queries and runs commands for one session.
type Puppet struct {
	transport wa.Transport
	cache     *cache.Manager
	sender    *outbox.Sender
	bus       *bus.Bus
	userName  string
	logger    *zap.Logger

	unsubscribe func()
}

// New creates a puppet. userName overrides the bot's own display name.
func New(t wa.Transport, c *cache.Manager, s *outbox.Sender, b *bus.Bus, userName string, logger *zap.Logger) *Puppet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Puppet{transport: t, cache: c, sender: s, bus: b, userName: userName, logger: logger}
}

// Start ties the send queues to the session: they open on login and are
// dropped on logout.
func (p *Puppet) Start() {
	p.sender.Close()
	p.unsubscribe = p.bus.SubscribeFunc(bus.NamespacePuppet, func(evt bus.Event) {
		switch evt.Kind {
		case model.KindLogin:
			p.sender.Open()
		case model.KindLogout:
			p.sender.Close()
		}
	})
}

// Stop detaches from the bus and drops the send queues.
func (p *Puppet) Stop() {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	p.sender.Close()
}

func validContact(id string) error {
	if !wa.IsContactID(id) {
		return errs.New(errs.CodeInvalidIdentifier, "not a contact id: %q", id)
	}
	return nil
}

func validRoom(id string) error {
	if !wa.IsRoomID(id) {
		return errs.New(errs.CodeInvalidIdentifier, "not a room id: %q", id)
	}
	return nil
}

func validChat(id string) error {
	if !wa.IsContactID(id) && !wa.IsRoomID(id) {
		return errs.New(errs.CodeInvalidIdentifier, "not a chat id: %q", id)
	}
	return nil
}

func roomFailed(op, roomID string, err error) error {
	return fmt.Errorf("%s: %w", op, withCause(errs.CodeRoomOperationFailed, roomID, err))
}

// withCause builds a coded error whose detail is id, followed by the
// transport error when there is one.
func withCause(code errs.Code, id string, err error) *errs.Error {
	if err == nil {
		return errs.New(code, "%s", id)
	}
	return errs.New(code, "%s: %v", id, err)
}

// ContactRawPayload returns the cached contact, fetching and caching it on
// a miss.
func (p *Puppet) ContactRawPayload(ctx context.Context, id string) (*wa.Contact, error) {
	if err := validContact(id); err != nil {
		return nil, err
	}
	raw, err := p.cache.ContactOrRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		return raw, nil
	}

	raw, err = p.transport.ContactByID(ctx, id)
	if err != nil || raw == nil {
		return nil, withCause(errs.CodeContactNotFound, id, err)
	}
	raw.Avatar, _ = p.transport.ProfilePicURL(ctx, id)
	if err := p.cache.SetContactOrRoom(ctx, id, raw); err != nil {
		return nil, fmt.Errorf("store contact: %w", err)
	}
	return raw, nil
}

func (p *Puppet) ContactPayload(ctx context.Context, id string) (*model.Contact, error) {
	raw, err := p.ContactRawPayload(ctx, id)
	if err != nil {
		return nil, err
	}
	return parser.ParseContact(raw, p.userName), nil
}

func (p *Puppet) ContactList(ctx context.Context) ([]string, error) {
	return p.cache.ContactIDList(ctx)
}

// RoomRawPayload returns the cached room, fetching it and its member list on
// a miss. A group without participants is reported as not found.
func (p *Puppet) RoomRawPayload(ctx context.Context, id string) (*wa.Contact, error) {
	if err := validRoom(id); err != nil {
		return nil, err
	}
	raw, err := p.cache.ContactOrRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		return raw, nil
	}

	chat, err := p.transport.GroupChatByID(ctx, id)
	if err != nil || chat == nil || len(chat.Participants) == 0 {
		return nil, withCause(errs.CodeRoomNotFound, id, err)
	}
	raw = &wa.Contact{ID: id, IsGroup: true, Name: chat.Name, Description: chat.Description, OwnerID: chat.OwnerID}
	raw.Avatar, _ = p.transport.ProfilePicURL(ctx, id)
	if err := p.cache.SetContactOrRoom(ctx, id, raw); err != nil {
		return nil, fmt.Errorf("store room: %w", err)
	}
	if err := p.cache.SetRoomMemberList(ctx, id, chat.ParticipantIDs()); err != nil {
		return nil, fmt.Errorf("store members: %w", err)
	}
	return raw, nil
}

// RoomPayload builds the canonical room. Admins come from the live group;
// when the transport cannot answer the cached member list is used without
// them.
func (p *Puppet) RoomPayload(ctx context.Context, id string) (*model.Room, error) {
	raw, err := p.RoomRawPayload(ctx, id)
	if err != nil {
		return nil, err
	}
	chat, err := p.transport.GroupChatByID(ctx, id)
	if err != nil || chat == nil || len(chat.Participants) == 0 {
		p.logger.Debug("group detail unavailable, using cached members", zap.String("room", id), zap.Error(err))
		members, err := p.cache.RoomMemberList(ctx, id)
		if err != nil {
			return nil, err
		}
		chat = &wa.GroupChat{ID: id}
		for _, m := range members {
			chat.Participants = append(chat.Participants, wa.GroupParticipant{ID: m})
		}
	}
	return parser.ParseRoom(raw, chat)
}

func (p *Puppet) RoomList(ctx context.Context) ([]string, error) {
	return p.cache.RoomIDList(ctx)
}

// RoomMemberList returns the cached members, loading them on a miss.
func (p *Puppet) RoomMemberList(ctx context.Context, roomID string) ([]string, error) {
	if _, err := p.RoomRawPayload(ctx, roomID); err != nil {
		return nil, err
	}
	members, err := p.cache.RoomMemberList(ctx, roomID)
	if err != nil || len(members) > 0 {
		return members, err
	}
	chat, err := p.transport.GroupChatByID(ctx, roomID)
	if err != nil || chat == nil || len(chat.Participants) == 0 {
		return nil, withCause(errs.CodeRoomNotFound, roomID, err)
	}
	members = chat.ParticipantIDs()
	if err := p.cache.SetRoomMemberList(ctx, roomID, members); err != nil {
		return nil, fmt.Errorf("store members: %w", err)
	}
	return members, nil
}

func (p *Puppet) MessageRawPayload(ctx context.Context, id string) (*wa.Message, error) {
	raw, err := p.cache.Message(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errs.New(errs.CodeMessageNotFound, "%s", id)
	}
	return raw, nil
}

func (p *Puppet) MessagePayload(ctx context.Context, id string) (*model.Message, error) {
	raw, err := p.MessageRawPayload(ctx, id)
	if err != nil {
		return nil, err
	}
	return parser.ParseMessage(raw)
}

// MessageContact returns the contact id shared by a contact card message.
func (p *Puppet) MessageContact(ctx context.Context, id string) (string, error) {
	raw, err := p.MessageRawPayload(ctx, id)
	if err != nil {
		return "", err
	}
	if raw.Type != wa.MessageTypeContactCard {
		return "", errs.New(errs.CodeMessageTypeMismatch, "%s is %s, not %s", id, raw.Type, wa.MessageTypeContactCard)
	}
	card, err := parser.ParseVCard(raw.Body)
	if err != nil {
		return "", err
	}
	return card.ContactID(), nil
}

func (p *Puppet) RoomInvitationRawPayload(ctx context.Context, id string) (*wa.RoomInvitation, error) {
	inv, err := p.cache.RoomInvitation(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, errs.New(errs.CodeRoomNotFound, "no invitation %s", id)
	}
	return inv, nil
}

func (p *Puppet) RoomInvitationPayload(ctx context.Context, id string) (*model.RoomInvitation, error) {
	inv, err := p.RoomInvitationRawPayload(ctx, id)
	if err != nil {
		return nil, err
	}
	return parser.ParseRoomInvitation(inv), nil
}

// FriendshipPayload rebuilds the friendship from the message that raised it;
// the friendship id is that message's id.
func (p *Puppet) FriendshipPayload(ctx context.Context, id string) (*model.Friendship, error) {
	raw, err := p.MessageRawPayload(ctx, id)
	if err != nil {
		return nil, err
	}
	return parser.GenFriendship(raw), nil
}

// MessageSendText sends text to a contact or room and returns the message
// id once the send is acknowledged.
func (p *Puppet) MessageSendText(ctx context.Context, to, text string) (string, error) {
	if err := validChat(to); err != nil {
		return "", err
	}
	return p.sender.Send(ctx, to, wa.Content{Text: text})
}

// MessageSendContact shares contactID as a contact card.
func (p *Puppet) MessageSendContact(ctx context.Context, to, contactID string) (string, error) {
	if err := validChat(to); err != nil {
		return "", err
	}
	contact, err := p.ContactRawPayload(ctx, contactID)
	if err != nil {
		return "", err
	}
	card, err := parser.BuildVCard(contact)
	if err != nil {
		return "", err
	}
	return p.sender.Send(ctx, to, wa.Content{ContactCard: card})
}

// RoomCreate creates a group with the given members and returns its id.
func (p *Puppet) RoomCreate(ctx context.Context, contactIDs []string, topic string) (string, error) {
	for _, id := range contactIDs {
		if err := validContact(id); err != nil {
			return "", err
		}
	}
	roomID, err := p.transport.CreateGroup(ctx, topic, contactIDs)
	if err != nil {
		return "", roomFailed("create room", topic, err)
	}
	p.logger.Info("room created", zap.String("room", roomID), zap.Int("members", len(contactIDs)))
	return roomID, nil
}

func (p *Puppet) RoomAdd(ctx context.Context, roomID, contactID string) error {
	if err := validRoom(roomID); err != nil {
		return err
	}
	if err := validContact(contactID); err != nil {
		return err
	}
	if err := p.transport.AddParticipants(ctx, roomID, []string{contactID}); err != nil {
		return roomFailed("add member", roomID, err)
	}
	return p.cache.AddRoomMemberToList(ctx, roomID, contactID)
}

func (p *Puppet) RoomDel(ctx context.Context, roomID, contactID string) error {
	if err := validRoom(roomID); err != nil {
		return err
	}
	if err := validContact(contactID); err != nil {
		return err
	}
	if err := p.transport.RemoveParticipants(ctx, roomID, []string{contactID}); err != nil {
		return roomFailed("remove member", roomID, err)
	}
	return p.cache.RemoveRoomMemberFromList(ctx, roomID, contactID)
}

// RoomTopic sets the group subject. The room-topic event follows from the
// transport's notification.
func (p *Puppet) RoomTopic(ctx context.Context, roomID, topic string) error {
	if err := validRoom(roomID); err != nil {
		return err
	}
	if err := p.transport.SetSubject(ctx, roomID, topic); err != nil {
		return roomFailed("set topic", roomID, err)
	}
	return nil
}

func (p *Puppet) RoomAnnounce(ctx context.Context, roomID, text string) error {
	if err := validRoom(roomID); err != nil {
		return err
	}
	if err := p.transport.SetDescription(ctx, roomID, text); err != nil {
		return roomFailed("set announcement", roomID, err)
	}
	return nil
}

// RoomAnnouncement returns the group description.
func (p *Puppet) RoomAnnouncement(ctx context.Context, roomID string) (string, error) {
	raw, err := p.RoomRawPayload(ctx, roomID)
	if err != nil {
		return "", err
	}
	return raw.Description, nil
}

// RoomQRCode returns the invite link of the group.
func (p *Puppet) RoomQRCode(ctx context.Context, roomID string) (string, error) {
	if err := validRoom(roomID); err != nil {
		return "", err
	}
	code, err := p.transport.InviteCode(ctx, roomID)
	if err != nil {
		return "", roomFailed("get invite code", roomID, err)
	}
	return InviteLinkPrefix + code, nil
}

// RoomInvitationAccept joins the group of a received invitation and returns
// the group id. The invitation is forgotten once used.
func (p *Puppet) RoomInvitationAccept(ctx context.Context, invitationID string) (string, error) {
	inv, err := p.RoomInvitationRawPayload(ctx, invitationID)
	if err != nil {
		return "", err
	}

	var roomID string
	if inv.InviteV4 != nil {
		roomID, err = p.transport.AcceptGroupV4Invite(ctx, inv.InviteV4)
	} else {
		roomID, err = p.transport.AcceptInvite(ctx, inv.InviteCode)
	}
	if err != nil {
		return "", roomFailed("accept invitation", invitationID, err)
	}
	if err := p.cache.DeleteRoomInvitation(ctx, invitationID); err != nil {
		p.logger.Warn("failed to drop used invitation", zap.String("invitation", invitationID), zap.Error(err))
	}
	return roomID, nil
}

// RoomMemberPayload returns a member's contact payload, restricted to
// members of roomID.
func (p *Puppet) RoomMemberPayload(ctx context.Context, roomID, memberID string) (*model.Contact, error) {
	members, err := p.RoomMemberList(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(members, memberID) {
		return nil, errs.New(errs.CodeContactNotFound, "%s is not a member of %s", memberID, roomID)
	}
	return p.ContactPayload(ctx, memberID)
}

// Logout ends the session at the provider. The logout event itself is
// emitted when the transport reports the disconnect.
func (p *Puppet) Logout(ctx context.Context) error {
	if err := p.transport.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
