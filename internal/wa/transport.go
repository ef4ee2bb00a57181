package wa

import "context"

// EventSink receives raw transport events.
type EventSink func(Event)

// Content is an outbound message body. Exactly one field is set.
type Content struct {
	Text        string
	ContactCard string // vCard text
	Location    *Location
}

// Transport is the command surface of the underlying messaging session.
type Transport interface {
	// OnEvent registers sink for every raw event.
	OnEvent(sink EventSink)

	Me(ctx context.Context) (*SessionInfo, error)
	Contacts(ctx context.Context) ([]Contact, error)
	ContactByID(ctx context.Context, id string) (*Contact, error)
	GroupChatByID(ctx context.Context, id string) (*GroupChat, error)
	ProfilePicURL(ctx context.Context, id string) (string, error)

	CreateGroup(ctx context.Context, name string, participants []string) (string, error)
	AddParticipants(ctx context.Context, roomID string, ids []string) error
	RemoveParticipants(ctx context.Context, roomID string, ids []string) error
	SetSubject(ctx context.Context, roomID, subject string) error
	SetDescription(ctx context.Context, roomID, description string) error
	InviteCode(ctx context.Context, roomID string) (string, error)
	AcceptInvite(ctx context.Context, code string) (string, error)
	AcceptGroupV4Invite(ctx context.Context, invite *InviteV4) (string, error)

	// NewMessageID returns an id SendMessage will use when passed back,
	// so callers can register interest before the send.
	NewMessageID() string
	SendMessage(ctx context.Context, chatID string, content Content, id string) (*Message, error)
	// FetchMessages returns messages of chatID newer than since (unix seconds).
	FetchMessages(ctx context.Context, chatID string, since int64) ([]*Message, error)

	Logout(ctx context.Context) error
}
