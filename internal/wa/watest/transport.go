// Package watest provides an in-memory wa.Transport for tests.
package watest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/wpp-puppet/internal/wa"
)

// Sent records one SendMessage call.
type Sent struct {
	ChatID  string
	Content wa.Content
	ID      string
}

// Transport is a scriptable wa.Transport. Fill the exported maps before use;
// Fail makes the named method return the given error.
type Transport struct {
	mu sync.Mutex

	Self    *wa.SessionInfo
	Book    map[string]*wa.Contact // contacts and groups by id
	Groups  map[string]*wa.GroupChat
	Avatars map[string]string
	Invites map[string]string // invite code -> room id
	History map[string][]*wa.Message
	Fail    map[string]error

	// OnSend runs after a successful send with the message the transport
	// returns, e.g. to emit acks through Emit.
	OnSend func(msg *wa.Message)

	Sent       []Sent
	LoggedOut  bool
	sink       wa.EventSink
	nextID     int
	nextRoomID int
}

// New returns a transport logged in as selfID.
func New(selfID string) *Transport {
	return &Transport{
		Self:    &wa.SessionInfo{ID: selfID, PushName: "bot"},
		Book:    map[string]*wa.Contact{selfID: {ID: selfID, PushName: "bot", IsUser: true, IsMe: true}},
		Groups:  map[string]*wa.GroupChat{},
		Avatars: map[string]string{},
		Invites: map[string]string{},
		History: map[string][]*wa.Message{},
		Fail:    map[string]error{},
	}
}

// AddContact registers an individual.
func (t *Transport) AddContact(c wa.Contact) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Book[c.ID] = &c
}

// AddGroup registers a group and its contact-shaped payload.
func (t *Transport) AddGroup(g wa.GroupChat) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Groups[g.ID] = &g
	t.Book[g.ID] = &wa.Contact{ID: g.ID, Name: g.Name, IsGroup: true}
}

// Emit delivers evt to the registered sink.
func (t *Transport) Emit(evt wa.Event) {
	t.mu.Lock()
	sink := t.sink
	t.mu.Unlock()
	if sink != nil {
		sink(evt)
	}
}

func (t *Transport) fail(method string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Fail[method]
}

func (t *Transport) OnEvent(sink wa.EventSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
}

func (t *Transport) Me(context.Context) (*wa.SessionInfo, error) {
	if err := t.fail("Me"); err != nil {
		return nil, err
	}
	return t.Self, nil
}

func (t *Transport) Contacts(context.Context) ([]wa.Contact, error) {
	if err := t.fail("Contacts"); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]wa.Contact, 0, len(t.Book))
	for _, c := range t.Book {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b wa.Contact) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out, nil
}

func (t *Transport) ContactByID(_ context.Context, id string) (*wa.Contact, error) {
	if err := t.fail("ContactByID"); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.Book[id]
	if !ok {
		return nil, fmt.Errorf("contact %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (t *Transport) GroupChatByID(_ context.Context, id string) (*wa.GroupChat, error) {
	if err := t.fail("GroupChatByID"); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.Groups[id]
	if !ok {
		return &wa.GroupChat{ID: id}, nil
	}
	cp := *g
	cp.Participants = slices.Clone(g.Participants)
	return &cp, nil
}

func (t *Transport) ProfilePicURL(_ context.Context, id string) (string, error) {
	if err := t.fail("ProfilePicURL"); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Avatars[id], nil
}

func (t *Transport) CreateGroup(_ context.Context, name string, participants []string) (string, error) {
	if err := t.fail("CreateGroup"); err != nil {
		return "", err
	}
	t.mu.Lock()
	t.nextRoomID++
	id := fmt.Sprintf("12036300000000%04d@g.us", t.nextRoomID)
	self := t.Self.ID
	t.mu.Unlock()

	g := wa.GroupChat{ID: id, Name: name, OwnerID: self, Participants: []wa.GroupParticipant{{ID: self, IsSuperAdmin: true}}}
	for _, p := range participants {
		g.Participants = append(g.Participants, wa.GroupParticipant{ID: p})
	}
	t.AddGroup(g)
	return id, nil
}

func (t *Transport) AddParticipants(_ context.Context, roomID string, ids []string) error {
	if err := t.fail("AddParticipants"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.Groups[roomID]
	if !ok {
		return fmt.Errorf("group %s not found", roomID)
	}
	for _, id := range ids {
		g.Participants = append(g.Participants, wa.GroupParticipant{ID: id})
	}
	return nil
}

func (t *Transport) RemoveParticipants(_ context.Context, roomID string, ids []string) error {
	if err := t.fail("RemoveParticipants"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.Groups[roomID]
	if !ok {
		return fmt.Errorf("group %s not found", roomID)
	}
	g.Participants = slices.DeleteFunc(g.Participants, func(p wa.GroupParticipant) bool {
		return slices.Contains(ids, p.ID)
	})
	return nil
}

func (t *Transport) SetSubject(_ context.Context, roomID, subject string) error {
	if err := t.fail("SetSubject"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.Groups[roomID]
	if !ok {
		return fmt.Errorf("group %s not found", roomID)
	}
	g.Name = subject
	return nil
}

func (t *Transport) SetDescription(_ context.Context, roomID, description string) error {
	if err := t.fail("SetDescription"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.Groups[roomID]
	if !ok {
		return fmt.Errorf("group %s not found", roomID)
	}
	g.Description = description
	return nil
}

func (t *Transport) InviteCode(_ context.Context, roomID string) (string, error) {
	if err := t.fail("InviteCode"); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for code, id := range t.Invites {
		if id == roomID {
			return code, nil
		}
	}
	return "", fmt.Errorf("no invite code for %s", roomID)
}

func (t *Transport) AcceptInvite(_ context.Context, code string) (string, error) {
	if err := t.fail("AcceptInvite"); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.Invites[code]
	if !ok {
		return "", fmt.Errorf("invite %s not found", code)
	}
	return id, nil
}

func (t *Transport) AcceptGroupV4Invite(ctx context.Context, invite *wa.InviteV4) (string, error) {
	if err := t.fail("AcceptGroupV4Invite"); err != nil {
		return "", err
	}
	return invite.GroupID, nil
}

func (t *Transport) NewMessageID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	return fmt.Sprintf("3EB0%012X", t.nextID)
}

func (t *Transport) SendMessage(_ context.Context, chatID string, content wa.Content, id string) (*wa.Message, error) {
	if err := t.fail("SendMessage"); err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.Sent = append(t.Sent, Sent{ChatID: chatID, Content: content, ID: id})
	self := t.Self.ID
	hook := t.OnSend
	t.mu.Unlock()

	msg := &wa.Message{
		ID:     wa.MessageKey{FromMe: true, RemoteRaw: chatID, ID: id, Serialized: wa.SerializeKey(true, chatID, id)},
		Ack:    wa.AckServer,
		Type:   wa.MessageTypeText,
		Body:   content.Text,
		From:   self,
		To:     chatID,
		FromMe: true,
	}
	if content.ContactCard != "" {
		msg.Type = wa.MessageTypeContactCard
		msg.Body = content.ContactCard
	}
	if hook != nil {
		hook(msg)
	}
	return msg, nil
}

func (t *Transport) FetchMessages(_ context.Context, chatID string, since int64) ([]*wa.Message, error) {
	if err := t.fail("FetchMessages"); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*wa.Message
	for _, m := range t.History[chatID] {
		if m.Timestamp > since {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *Transport) Logout(context.Context) error {
	if err := t.fail("Logout"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.LoggedOut = true
	return nil
}

var _ wa.Transport = (*Transport)(nil)

// SentMessages returns a copy of the recorded sends.
func (t *Transport) SentMessages() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.Sent)
}
