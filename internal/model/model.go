// Package model holds the canonical, transport-agnostic payloads and events
// handed to the bot framework.
package model

// ContactType classifies a contact.
type ContactType int

const (
	ContactTypeUnknown ContactType = iota
	ContactTypeIndividual
	ContactTypeOfficial
	ContactTypeCorporation
)

// ContactGender is always unknown for this provider.
type ContactGender int

const ContactGenderUnknown ContactGender = 0

// Contact is the canonical contact payload.
type Contact struct {
	ID          string
	Type        ContactType
	Gender      ContactGender
	Name        string
	Alias       string
	Avatar      string
	Friend      bool
	Phone       []string
	Handle      string
	Corporation string
	Description string
}

// MessageType is the canonical message type.
type MessageType int

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeAttachment
	MessageTypeAudio
	MessageTypeContact
	MessageTypeChatHistory
	MessageTypeEmoticon
	MessageTypeImage
	MessageTypeText
	MessageTypeLocation
	MessageTypeMiniProgram
	MessageTypeGroupNote
	MessageTypeTransfer
	MessageTypeRedEnvelope
	MessageTypeRecalled
	MessageTypeURL
	MessageTypeVideo
	MessageTypePost
)

var messageTypeNames = [...]string{
	"Unknown", "Attachment", "Audio", "Contact", "ChatHistory", "Emoticon",
	"Image", "Text", "Location", "MiniProgram", "GroupNote", "Transfer",
	"RedEnvelope", "Recalled", "Url", "Video", "Post",
}

func (t MessageType) String() string {
	if int(t) < len(messageTypeNames) {
		return messageTypeNames[t]
	}
	return "Unknown"
}

// Message is the canonical message payload. Exactly one of RoomID and
// ListenerID is set.
type Message struct {
	ID            string
	Type          MessageType
	TalkerID      string
	RoomID        string
	ListenerID    string
	Text          string
	Timestamp     int64
	MentionIDList []string
	Filename      string
}

// Room is the canonical room payload.
type Room struct {
	ID           string
	Topic        string
	Avatar       string
	OwnerID      string
	MemberIDList []string
	AdminIDList  []string
}

// FriendshipType classifies a friendship event.
type FriendshipType int

const (
	FriendshipTypeUnknown FriendshipType = iota
	FriendshipTypeConfirm
	FriendshipTypeReceive
	FriendshipTypeVerify
)

// Friendship is the canonical friendship payload.
type Friendship struct {
	ID        string
	ContactID string
	Hello     string
	Type      FriendshipType
	Timestamp int64
}

// RoomInvitation is the canonical room invitation payload.
type RoomInvitation struct {
	ID          string
	InviterID   string
	ReceiverID  string
	Topic       string
	MemberCount int
	Timestamp   int64
}

// ScanStatus is the state of a login QR code.
type ScanStatus int

const (
	ScanStatusUnknown ScanStatus = iota
	ScanStatusCancel
	ScanStatusWaiting
	ScanStatusScanned
	ScanStatusConfirmed
	ScanStatusTimeout
)
