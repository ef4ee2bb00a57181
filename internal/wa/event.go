package wa

// Event is one raw event emitted by the transport. The concrete type names
// the event; each variant carries exactly the fields of that event.
type Event interface {
	eventName() string
}

// EventName returns the transport name of evt.
func EventName(evt Event) string {
	return evt.eventName()
}

type QREvent struct{ Code string }

type AuthenticatedEvent struct{ Session string }

type AuthFailureEvent struct{ Reason string }

type ReadyEvent struct{}

type ChangeStateEvent struct{ State ConnectionState }

type ChangeBatteryEvent struct{ Info BatteryInfo }

type DisconnectedEvent struct{ Reason string }

type MessageEvent struct{ Message *Message }

// MessageAckEvent reports a new ack level. Message may be nil when the
// transport only knows the id, in which case the cached payload is used.
type MessageAckEvent struct {
	ID      string
	Ack     AckLevel
	Message *Message
}

type MessageCreateEvent struct{ Message *Message }

// MessageRevokeEveryoneEvent carries the revocation notice and, when the
// transport still has it, the original message.
type MessageRevokeEveryoneEvent struct {
	Revoked  *Message
	Original *Message
}

type MessageRevokeMeEvent struct{ Message *Message }

type MediaUploadedEvent struct{ Message *Message }

type IncomingCallEvent struct{ Call Call }

type GroupJoinEvent struct{ Notification *GroupNotification }

type GroupLeaveEvent struct{ Notification *GroupNotification }

type GroupUpdateEvent struct{ Notification *GroupNotification }

func (QREvent) eventName() string                    { return "qr" }
func (AuthenticatedEvent) eventName() string         { return "authenticated" }
func (AuthFailureEvent) eventName() string           { return "auth_failure" }
func (ReadyEvent) eventName() string                 { return "ready" }
func (ChangeStateEvent) eventName() string           { return "change_state" }
func (ChangeBatteryEvent) eventName() string         { return "change_battery" }
func (DisconnectedEvent) eventName() string          { return "disconnected" }
func (MessageEvent) eventName() string               { return "message" }
func (MessageAckEvent) eventName() string            { return "message_ack" }
func (MessageCreateEvent) eventName() string         { return "message_create" }
func (MessageRevokeEveryoneEvent) eventName() string { return "message_revoke_everyone" }
func (MessageRevokeMeEvent) eventName() string       { return "message_revoke_me" }
func (MediaUploadedEvent) eventName() string         { return "media_uploaded" }
func (IncomingCallEvent) eventName() string          { return "incoming_call" }
func (GroupJoinEvent) eventName() string             { return "group_join" }
func (GroupLeaveEvent) eventName() string            { return "group_leave" }
func (GroupUpdateEvent) eventName() string           { return "group_update" }
