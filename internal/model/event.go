package model

// Bus kinds of the canonical events. All share the "puppet." namespace.
const (
	KindMessage    = "puppet.message"
	KindRoomJoin   = "puppet.room-join"
	KindRoomLeave  = "puppet.room-leave"
	KindRoomTopic  = "puppet.room-topic"
	KindRoomInvite = "puppet.room-invite"
	KindScan       = "puppet.scan"
	KindLogin      = "puppet.login"
	KindLogout     = "puppet.logout"
	KindFriendship = "puppet.friendship"
	KindReady      = "puppet.ready"
)

type MessageEvent struct {
	MessageID string
}

type RoomJoinEvent struct {
	RoomID        string
	InviterID     string
	InviteeIDList []string
	Timestamp     int64
}

type RoomLeaveEvent struct {
	RoomID        string
	RemoverID     string
	RemoveeIDList []string
	Timestamp     int64
}

type RoomTopicEvent struct {
	RoomID    string
	ChangerID string
	OldTopic  string
	NewTopic  string
	Timestamp int64
}

type RoomInviteEvent struct {
	RoomInvitationID string
}

type ScanEvent struct {
	Status ScanStatus
	QRCode string
	Data   string
}

type LoginEvent struct {
	ContactID string
}

type LogoutEvent struct {
	ContactID string
	Reason    string
}

type FriendshipEvent struct {
	FriendshipID string
}

type ReadyEvent struct{}
