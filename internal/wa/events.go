package wa

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// handle converts whatsmeow events into transport events. It runs on the
// client's event goroutine and never blocks on anything but the sink.
func (a *Adapter) handle(rawEvt any) {
	ctx := context.Background()

	switch evt := rawEvt.(type) {
	case *events.Connected:
		a.logger.Info("WhatsApp connected")
		a.emit(ChangeStateEvent{State: StateConnected})
		a.emit(ReadyEvent{})
	case *events.Disconnected:
		a.logger.Warn("WhatsApp disconnected")
		a.emit(ChangeStateEvent{State: StateTimeout})
	case *events.KeepAliveTimeout:
		a.emit(ChangeStateEvent{State: StateTimeout})
	case *events.KeepAliveRestored:
		a.emit(ChangeStateEvent{State: StateConnected})
	case *events.StreamReplaced:
		a.emit(ChangeStateEvent{State: StateConflict})
	case *events.TemporaryBan:
		a.emit(ChangeStateEvent{State: StateTOSBlock})
	case *events.LoggedOut:
		a.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		a.history.reset()
		a.emit(DisconnectedEvent{Reason: evt.Reason.String()})
	case *events.PairError:
		a.emit(AuthFailureEvent{Reason: evt.Error.Error()})

	case *events.Message:
		a.handleMessage(ctx, evt)
	case *events.Receipt:
		a.handleReceipt(evt)
	case *events.HistorySync:
		a.handleHistorySync(ctx, evt)

	case *events.GroupInfo:
		a.handleGroupInfo(ctx, evt)
	case *events.JoinedGroup:
		a.handleJoinedGroup(ctx, evt)
	case *events.Picture:
		if evt.JID.Server == types.GroupServer {
			n := a.notification(ctx, evt.JID, &evt.Author, evt.Timestamp, NotificationPicture)
			a.emit(GroupUpdateEvent{Notification: n})
		}

	case *events.CallOffer:
		a.emit(IncomingCallEvent{Call: Call{
			ID:        evt.CallID,
			From:      a.id(ctx, evt.CallCreator),
			Timestamp: evt.Timestamp.Unix(),
		}})
	}
}

func (a *Adapter) handleMessage(ctx context.Context, evt *events.Message) {
	if origID, ok := revokedKey(evt.Message); ok {
		notice := a.convertMessage(ctx, evt.Info, evt.Message)
		notice.ID.ID = origID
		notice.ID.Serialized = SerializeKey(notice.ID.FromMe, notice.ID.Remote(), origID)
		notice.Type = MessageTypeRevoked
		a.emit(MessageRevokeEveryoneEvent{
			Revoked:  notice,
			Original: a.history.find(notice.ID.Remote(), origID),
		})
		return
	}

	msg := a.convertMessage(ctx, evt.Info, evt.Message)
	a.history.add(msg)
	if msg.FromMe {
		a.emit(MessageCreateEvent{Message: msg})
		return
	}
	a.emit(MessageEvent{Message: msg})
}

// handleReceipt reports delivery of own messages. Receipts sent by our own
// devices concern incoming messages and are skipped.
func (a *Adapter) handleReceipt(evt *events.Receipt) {
	if evt.IsFromMe {
		return
	}
	ack, ok := ackFromReceipt(evt.Type)
	if !ok {
		return
	}
	for _, id := range evt.MessageIDs {
		a.emit(MessageAckEvent{ID: id, Ack: ack})
	}
}

// handleHistorySync stores the synced conversations for replay. Nothing is
// emitted; the periodic sync picks them up.
func (a *Adapter) handleHistorySync(ctx context.Context, evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	selfJID := types.EmptyJID
	if a.IsLoggedIn() {
		selfJID = a.client.Store.ID.ToNonAD()
	}

	n := 0
	for _, conv := range data.GetConversations() {
		chat, err := types.ParseJID(conv.GetID())
		if err != nil {
			continue
		}
		for _, hm := range conv.GetMessages() {
			web := hm.GetMessage()
			if web == nil || web.GetMessage() == nil {
				continue
			}
			key := web.GetKey()
			info := types.MessageInfo{
				MessageSource: types.MessageSource{
					Chat:     chat,
					IsFromMe: key.GetFromMe(),
					IsGroup:  chat.Server == types.GroupServer,
				},
				ID:        key.GetID(),
				Timestamp: time.Unix(int64(web.GetMessageTimestamp()), 0),
			}
			switch {
			case key.GetParticipant() != "":
				info.Sender, _ = types.ParseJID(key.GetParticipant())
			case info.IsFromMe:
				info.Sender = selfJID
			default:
				info.Sender = chat
			}
			a.history.add(a.convertMessage(ctx, info, web.GetMessage()))
			n++
		}
	}
	a.logger.Debug("history synced", zap.Int("messages", n))
}

// handleGroupInfo splits one group change into the join, leave and update
// notifications it implies.
func (a *Adapter) handleGroupInfo(ctx context.Context, evt *events.GroupInfo) {
	if len(evt.Join) > 0 {
		n := a.notification(ctx, evt.JID, evt.Sender, evt.Timestamp, NotificationAdd)
		n.RecipientIDs = a.ids(ctx, evt.Join)
		if evt.JoinReason == "invite" {
			n.Type = NotificationInvite
		}
		a.emit(GroupJoinEvent{Notification: n})
	}
	if len(evt.Leave) > 0 {
		n := a.notification(ctx, evt.JID, evt.Sender, evt.Timestamp, NotificationRemove)
		n.RecipientIDs = a.ids(ctx, evt.Leave)
		if len(n.RecipientIDs) == 1 && n.RecipientIDs[0] == n.Author {
			n.Type = NotificationLeave
		}
		a.emit(GroupLeaveEvent{Notification: n})
	}
	if evt.Name != nil {
		n := a.notification(ctx, evt.JID, evt.Sender, evt.Timestamp, NotificationSubject)
		n.Body = evt.Name.Name
		a.emit(GroupUpdateEvent{Notification: n})
	}
	if evt.Topic != nil {
		n := a.notification(ctx, evt.JID, evt.Sender, evt.Timestamp, NotificationDescription)
		n.Body = evt.Topic.Topic
		a.emit(GroupUpdateEvent{Notification: n})
	}
}

func (a *Adapter) handleJoinedGroup(ctx context.Context, evt *events.JoinedGroup) {
	n := a.notification(ctx, evt.JID, evt.Sender, time.Now(), NotificationCreate)
	for _, p := range evt.Participants {
		n.RecipientIDs = append(n.RecipientIDs, a.id(ctx, p.JID))
	}
	a.emit(GroupUpdateEvent{Notification: n})
}

// notification builds a group notification under a fresh id; the provider
// gives group changes no message id of their own.
func (a *Adapter) notification(ctx context.Context, group types.JID, author *types.JID, ts time.Time, typ NotificationType) *GroupNotification {
	chat := ToID(group)
	id := uuid.NewString()
	n := &GroupNotification{
		ID:        MessageKey{RemoteRaw: chat, ID: id, Serialized: SerializeKey(false, chat, id)},
		ChatID:    chat,
		Type:      typ,
		Timestamp: ts.Unix(),
	}
	if author != nil && !author.IsEmpty() {
		n.Author = a.id(ctx, *author)
	}
	return n
}

func (a *Adapter) ids(ctx context.Context, jids []types.JID) []string {
	out := make([]string, 0, len(jids))
	for _, jid := range jids {
		out = append(out, a.id(ctx, jid))
	}
	return out
}
