package wa

import (
	"fmt"
	"strings"
)

// Id suffixes of the provider's canonical identifiers.
const (
	ContactSuffix = "@c.us"
	RoomSuffix    = "@g.us"
)

// IsRoomID reports whether id names a group conversation.
func IsRoomID(id string) bool {
	return strings.HasSuffix(id, RoomSuffix)
}

// IsContactID reports whether id names an individual.
func IsContactID(id string) bool {
	return strings.HasSuffix(id, ContactSuffix)
}

// AckLevel is the delivery stage reported for a sent message.
type AckLevel int

const (
	AckError   AckLevel = -1
	AckPending AckLevel = 0
	AckServer  AckLevel = 1
	AckDevice  AckLevel = 2
	AckRead    AckLevel = 3
	AckPlayed  AckLevel = 4
)

func (a AckLevel) String() string {
	switch a {
	case AckError:
		return "ACK_ERROR"
	case AckPending:
		return "ACK_PENDING"
	case AckServer:
		return "ACK_SERVER"
	case AckDevice:
		return "ACK_DEVICE"
	case AckRead:
		return "ACK_READ"
	case AckPlayed:
		return "ACK_PLAYED"
	default:
		return fmt.Sprintf("ACK(%d)", int(a))
	}
}

// MessageType is the provider's type tag.
type MessageType string

const (
	MessageTypeText             MessageType = "chat"
	MessageTypeAudio            MessageType = "audio"
	MessageTypeVoice            MessageType = "ptt"
	MessageTypeImage            MessageType = "image"
	MessageTypeVideo            MessageType = "video"
	MessageTypeDocument         MessageType = "document"
	MessageTypeSticker          MessageType = "sticker"
	MessageTypeLocation         MessageType = "location"
	MessageTypeContactCard      MessageType = "vcard"
	MessageTypeMultiContactCard MessageType = "multi_vcard"
	MessageTypeRevoked          MessageType = "revoked"
	MessageTypeGroupInvite      MessageType = "groups_v4_invite"
	MessageTypeNotification     MessageType = "notification"
	MessageTypeGroupNotify      MessageType = "gp2"
	MessageTypeCallLog          MessageType = "call_log"
	MessageTypePoll             MessageType = "poll_creation"
	MessageTypeUnknown          MessageType = "unknown"
)

// IsMedia reports whether messages of this type carry a downloadable attachment.
func (t MessageType) IsMedia() bool {
	switch t {
	case MessageTypeAudio, MessageTypeVoice, MessageTypeImage, MessageTypeVideo,
		MessageTypeDocument, MessageTypeSticker:
		return true
	}
	return false
}

// JID is the structured form of a chat address.
type JID struct {
	Server     string `json:"server"`
	User       string `json:"user"`
	Serialized string `json:"_serialized"`
}

// MessageKey identifies a message. Remote is either a plain id string
// (RemoteRaw) or a structured JID (RemoteJID); exactly one is set.
type MessageKey struct {
	FromMe     bool   `json:"fromMe"`
	RemoteRaw  string `json:"remote,omitempty"`
	RemoteJID  *JID   `json:"remoteJid,omitempty"`
	ID         string `json:"id"`
	Serialized string `json:"_serialized"`
}

// Remote returns the chat address of the key in serialized form.
func (k MessageKey) Remote() string {
	if k.RemoteJID != nil {
		return k.RemoteJID.Serialized
	}
	return k.RemoteRaw
}

// SerializeKey builds the provider's serialized message id.
func SerializeKey(fromMe bool, remote, id string) string {
	return fmt.Sprintf("%t_%s_%s", fromMe, remote, id)
}

// Location is the payload of a location message.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description,omitempty"`
}

// InviteV4 is the structured group invitation carried by MessageTypeGroupInvite.
type InviteV4 struct {
	InviteCode           string `json:"inviteCode"`
	InviteCodeExpiration int64  `json:"inviteCodeExp"`
	GroupID              string `json:"groupId"`
	GroupName            string `json:"groupName,omitempty"`
	FromID               string `json:"fromId"`
	ToID                 string `json:"toId"`
	Comment              string `json:"comment,omitempty"`
}

// Link is a URL found in a message body.
type Link struct {
	Link         string `json:"link"`
	IsSuspicious bool   `json:"isSuspicious"`
}

// Message is the raw message payload. Source is the live transport object
// the payload was built from; it is never persisted.
type Message struct {
	ID            MessageKey  `json:"id"`
	Ack           AckLevel    `json:"ack"`
	HasMedia      bool        `json:"hasMedia"`
	MediaUploaded bool        `json:"mediaUploaded,omitempty"`
	Body          string      `json:"body"`
	Type          MessageType `json:"type"`
	Timestamp     int64       `json:"timestamp"`
	From          string      `json:"from"`
	To            string      `json:"to"`
	Author        string      `json:"author,omitempty"`
	FromMe        bool        `json:"fromMe"`
	IsForwarded   bool        `json:"isForwarded,omitempty"`
	IsStatus      bool        `json:"isStatus,omitempty"`
	Broadcast     bool        `json:"broadcast,omitempty"`
	HasQuotedMsg  bool        `json:"hasQuotedMsg,omitempty"`
	Title         string      `json:"title,omitempty"`
	Description   string      `json:"description,omitempty"`
	VCards        []string    `json:"vCards,omitempty"`
	MentionedIDs  []string    `json:"mentionedIds,omitempty"`
	Links         []Link      `json:"links,omitempty"`
	Location      *Location   `json:"location,omitempty"`
	InviteV4      *InviteV4   `json:"inviteV4,omitempty"`
	Source        any         `json:"-"`
}

// Snapshot returns a copy safe to persist.
func (m *Message) Snapshot() *Message {
	cp := *m
	cp.Source = nil
	return &cp
}

// Contact is the raw payload of an individual or a group. Individuals and
// groups share one shape and one cache namespace.
type Contact struct {
	ID           string `json:"id"`
	Number       string `json:"number,omitempty"`
	Name         string `json:"name,omitempty"`
	PushName     string `json:"pushname,omitempty"`
	ShortName    string `json:"shortName,omitempty"`
	IsBusiness   bool   `json:"isBusiness,omitempty"`
	IsEnterprise bool   `json:"isEnterprise,omitempty"`
	IsGroup      bool   `json:"isGroup,omitempty"`
	IsMe         bool   `json:"isMe,omitempty"`
	IsMyContact  bool   `json:"isMyContact,omitempty"`
	IsUser       bool   `json:"isUser,omitempty"`
	IsWAContact  bool   `json:"isWAContact,omitempty"`
	IsBlocked    bool   `json:"isBlocked,omitempty"`
	Avatar       string `json:"avatar,omitempty"`
	Description  string `json:"description,omitempty"`
	OwnerID      string `json:"owner,omitempty"`
}

// GroupParticipant is one member entry of a GroupChat.
type GroupParticipant struct {
	ID           string `json:"id"`
	IsAdmin      bool   `json:"isAdmin"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

// GroupChat is the detailed group state fetched from the transport.
type GroupChat struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	OwnerID      string             `json:"owner,omitempty"`
	CreatedAt    int64              `json:"createdAt,omitempty"`
	Participants []GroupParticipant `json:"participants"`
}

// ParticipantIDs lists the member ids.
func (g *GroupChat) ParticipantIDs() []string {
	ids := make([]string, 0, len(g.Participants))
	for _, p := range g.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

// NotificationType is the subtype of a group notification.
type NotificationType string

const (
	NotificationAdd         NotificationType = "add"
	NotificationInvite      NotificationType = "invite"
	NotificationRemove      NotificationType = "remove"
	NotificationLeave       NotificationType = "leave"
	NotificationCreate      NotificationType = "create"
	NotificationSubject     NotificationType = "subject"
	NotificationDescription NotificationType = "description"
	NotificationPicture     NotificationType = "picture"
	NotificationAnnounce    NotificationType = "announce"
	NotificationRestrict    NotificationType = "restrict"
)

// GroupNotification is the raw payload of group_join, group_leave and
// group_update events.
type GroupNotification struct {
	ID           MessageKey       `json:"id"`
	ChatID       string           `json:"chatId"`
	Author       string           `json:"author"`
	Body         string           `json:"body"`
	Type         NotificationType `json:"type"`
	Timestamp    int64            `json:"timestamp"`
	RecipientIDs []string         `json:"recipientIds"`
}

// RoomInvitation is the partial invite record kept in the invitation namespace.
type RoomInvitation struct {
	ID         string    `json:"id"`
	InviteCode string    `json:"inviteCode"`
	InviterID  string    `json:"inviterId"`
	ReceiverID string    `json:"receiverId"`
	GroupName  string    `json:"groupName,omitempty"`
	Timestamp  int64     `json:"timestamp"`
	InviteV4   *InviteV4 `json:"inviteV4,omitempty"`
}

// SessionInfo is the bot's own account as reported by the transport.
type SessionInfo struct {
	ID       string `json:"wid"`
	PushName string `json:"pushname"`
	Platform string `json:"platform,omitempty"`
}

// ConnectionState mirrors the provider's connection states.
type ConnectionState string

const (
	StateConflict     ConnectionState = "CONFLICT"
	StateConnected    ConnectionState = "CONNECTED"
	StateOpening      ConnectionState = "OPENING"
	StatePairing      ConnectionState = "PAIRING"
	StateTimeout      ConnectionState = "TIMEOUT"
	StateUnlaunched   ConnectionState = "UNLAUNCHED"
	StateUnpaired     ConnectionState = "UNPAIRED"
	StateUnpairedIdle ConnectionState = "UNPAIRED_IDLE"
	StateTOSBlock     ConnectionState = "TOS_BLOCK"
)

// BatteryInfo is the phone battery report.
type BatteryInfo struct {
	Battery int  `json:"battery"`
	Plugged bool `json:"plugged"`
}

// Call is an incoming call offer.
type Call struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	IsGroup   bool   `json:"isGroup"`
	IsVideo   bool   `json:"isVideo"`
	Timestamp int64  `json:"timestamp"`
}
