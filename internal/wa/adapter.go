package wa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/matheus3301/wpp-puppet/internal/session"
	"go.mau.fi/whatsmeow"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// ReasonLogout is the disconnect reason reported after an explicit Logout.
const ReasonLogout = "LOGOUT"

const inviteLinkPrefix = "https://chat.whatsapp.com/"

var errNotLoggedIn = errors.New("not logged in")

// Adapter implements Transport on top of a whatsmeow client.
type Adapter struct {
	client  *whatsmeow.Client
	logger  *zap.Logger
	session string

	mu      sync.RWMutex
	sink    EventSink
	history *history
}

// NewAdapter opens the device store of the given session and creates the
// client. historyLimit bounds the messages kept per chat for replay.
func NewAdapter(ctx context.Context, sessionName string, historyLimit int, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("WPP-PUPPET", [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", session.SessionDBPath(sessionName)),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	a := &Adapter{
		client:  whatsmeow.NewClient(deviceStore, nil),
		logger:  logger,
		session: sessionName,
		history: newHistory(historyLimit),
	}
	a.client.AddEventHandler(a.handle)
	return a, nil
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client != nil && a.client.Store.ID != nil
}

// Disconnect terminates the connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

func (a *Adapter) OnEvent(sink EventSink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sink = sink
}

func (a *Adapter) emit(evt Event) {
	a.mu.RLock()
	sink := a.sink
	a.mu.RUnlock()
	if sink == nil {
		a.logger.Debug("event dropped, no sink", zap.String("event", EventName(evt)))
		return
	}
	sink(evt)
}

func (a *Adapter) selfID() string {
	if !a.IsLoggedIn() {
		return ""
	}
	return ToID(*a.client.Store.ID)
}

func (a *Adapter) Me(context.Context) (*SessionInfo, error) {
	if !a.IsLoggedIn() {
		return nil, errNotLoggedIn
	}
	return &SessionInfo{
		ID:       a.selfID(),
		PushName: a.client.Store.PushName,
		Platform: a.client.Store.Platform,
	}, nil
}

// Contacts lists the address book and the joined groups.
func (a *Adapter) Contacts(ctx context.Context) ([]Contact, error) {
	book, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("get contacts: %w", err)
	}
	out := make([]Contact, 0, len(book))
	for jid, info := range book {
		jid = a.ResolveLID(ctx, jid.ToNonAD())
		if jid.Server != types.DefaultUserServer {
			continue
		}
		out = append(out, convertContact(jid, info))
	}

	groups, err := a.client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("get joined groups: %w", err)
	}
	for _, g := range groups {
		out = append(out, *groupContact(a.convertGroup(ctx, g)))
	}
	return out, nil
}

func (a *Adapter) ContactByID(ctx context.Context, id string) (*Contact, error) {
	jid, err := ToJID(id)
	if err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if jid.Server == types.GroupServer {
		g, err := a.GroupChatByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return groupContact(g), nil
	}

	info, err := a.client.Store.Contacts.GetContact(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	c := convertContact(jid, info)
	if id == a.selfID() {
		c.IsMe = true
		if c.PushName == "" {
			c.PushName = a.client.Store.PushName
		}
	}
	return &c, nil
}

func (a *Adapter) GroupChatByID(ctx context.Context, id string) (*GroupChat, error) {
	jid, err := ToJID(id)
	if err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	info, err := a.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("get group info: %w", err)
	}
	return a.convertGroup(ctx, info), nil
}

// ProfilePicURL returns "" when the entity has no visible picture.
func (a *Adapter) ProfilePicURL(ctx context.Context, id string) (string, error) {
	jid, err := ToJID(id)
	if err != nil {
		return "", fmt.Errorf("parse id: %w", err)
	}
	info, err := a.client.GetProfilePictureInfo(ctx, jid, &whatsmeow.GetProfilePictureParams{})
	switch {
	case errors.Is(err, whatsmeow.ErrProfilePictureNotSet), errors.Is(err, whatsmeow.ErrProfilePictureUnauthorized):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("get profile picture: %w", err)
	case info == nil:
		return "", nil
	}
	return info.URL, nil
}

func (a *Adapter) CreateGroup(ctx context.Context, name string, participants []string) (string, error) {
	jids, err := toJIDs(participants)
	if err != nil {
		return "", fmt.Errorf("parse participants: %w", err)
	}
	info, err := a.client.CreateGroup(ctx, whatsmeow.ReqCreateGroup{Name: name, Participants: jids})
	if err != nil {
		return "", fmt.Errorf("create group: %w", err)
	}
	return ToID(info.JID), nil
}

func (a *Adapter) AddParticipants(ctx context.Context, roomID string, ids []string) error {
	return a.updateParticipants(ctx, roomID, ids, whatsmeow.ParticipantChangeAdd)
}

func (a *Adapter) RemoveParticipants(ctx context.Context, roomID string, ids []string) error {
	return a.updateParticipants(ctx, roomID, ids, whatsmeow.ParticipantChangeRemove)
}

func (a *Adapter) updateParticipants(ctx context.Context, roomID string, ids []string, action whatsmeow.ParticipantChange) error {
	room, err := ToJID(roomID)
	if err != nil {
		return fmt.Errorf("parse room id: %w", err)
	}
	jids, err := toJIDs(ids)
	if err != nil {
		return fmt.Errorf("parse participants: %w", err)
	}
	res, err := a.client.UpdateGroupParticipants(ctx, room, jids, action)
	if err != nil {
		return fmt.Errorf("update participants: %w", err)
	}
	// Per-participant failures come back as error codes, not as err.
	for _, p := range res {
		if p.Error != 0 {
			return fmt.Errorf("update participant %s: error %d", p.JID, p.Error)
		}
	}
	return nil
}

func (a *Adapter) SetSubject(ctx context.Context, roomID, subject string) error {
	room, err := ToJID(roomID)
	if err != nil {
		return fmt.Errorf("parse room id: %w", err)
	}
	return a.client.SetGroupName(ctx, room, subject)
}

func (a *Adapter) SetDescription(ctx context.Context, roomID, description string) error {
	room, err := ToJID(roomID)
	if err != nil {
		return fmt.Errorf("parse room id: %w", err)
	}
	return a.client.SetGroupTopic(ctx, room, "", "", description)
}

func (a *Adapter) InviteCode(ctx context.Context, roomID string) (string, error) {
	room, err := ToJID(roomID)
	if err != nil {
		return "", fmt.Errorf("parse room id: %w", err)
	}
	link, err := a.client.GetGroupInviteLink(ctx, room, false)
	if err != nil {
		return "", fmt.Errorf("get invite link: %w", err)
	}
	return strings.TrimPrefix(link, inviteLinkPrefix), nil
}

func (a *Adapter) AcceptInvite(ctx context.Context, code string) (string, error) {
	jid, err := a.client.JoinGroupWithLink(ctx, code)
	if err != nil {
		return "", fmt.Errorf("join group: %w", err)
	}
	return ToID(jid), nil
}

func (a *Adapter) AcceptGroupV4Invite(ctx context.Context, invite *InviteV4) (string, error) {
	group, err := ToJID(invite.GroupID)
	if err != nil {
		return "", fmt.Errorf("parse group id: %w", err)
	}
	inviter, err := ToJID(invite.FromID)
	if err != nil {
		return "", fmt.Errorf("parse inviter id: %w", err)
	}
	if err := a.client.JoinGroupWithInvite(ctx, group, inviter, invite.InviteCode, invite.InviteCodeExpiration); err != nil {
		return "", fmt.Errorf("join group: %w", err)
	}
	return invite.GroupID, nil
}

func (a *Adapter) NewMessageID() string {
	return a.client.GenerateMessageID()
}

// SendMessage sends content under id. The send is reported back as a
// message_create followed by a server ack, the way the phone reports it.
func (a *Adapter) SendMessage(ctx context.Context, chatID string, content Content, id string) (*Message, error) {
	to, err := ToJID(chatID)
	if err != nil {
		return nil, fmt.Errorf("parse chat id: %w", err)
	}
	out := buildMessage(content)
	resp, err := a.client.SendMessage(ctx, to, out, whatsmeow.SendRequestExtra{ID: types.MessageID(id)})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	info := types.MessageInfo{
		MessageSource: types.MessageSource{Chat: to, IsFromMe: true, IsGroup: to.Server == types.GroupServer},
		ID:            resp.ID,
		Timestamp:     resp.Timestamp,
	}
	if a.client.Store.ID != nil {
		info.Sender = a.client.Store.ID.ToNonAD()
	}
	msg := a.convertMessage(ctx, info, out)
	a.history.add(msg)

	a.emit(MessageCreateEvent{Message: msg})
	a.emit(MessageAckEvent{ID: msg.ID.ID, Ack: AckServer, Message: msg})
	return msg, nil
}

// FetchMessages replays the messages of chatID newer than since from the
// history the adapter has seen.
func (a *Adapter) FetchMessages(_ context.Context, chatID string, since int64) ([]*Message, error) {
	return a.history.since(chatID, since), nil
}

// Logout invalidates the session and removes credentials. The provider does
// not report this itself, so the disconnect is emitted here.
func (a *Adapter) Logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	a.history.reset()
	a.emit(DisconnectedEvent{Reason: ReasonLogout})
	return nil
}

// ResolveLID resolves a LID JID to its phone number JID using the device store mapping.
// Returns the original JID if it's not a LID or if resolution fails.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}


var _ Transport = (*Adapter)(nil)

