package wa

import (
	"context"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

func TestToIDAndBack(t *testing.T) {
	tests := []struct {
		jid  types.JID
		want string
	}{
		{types.NewJID("8613812345678", types.DefaultUserServer), "8613812345678@c.us"},
		{types.NewADJID("8613812345678", 0, 12), "8613812345678@c.us"},
		{types.NewJID("120363039010379837", types.GroupServer), "120363039010379837@g.us"},
		{types.StatusBroadcastJID, "status@broadcast"},
	}
	for _, tt := range tests {
		if got := ToID(tt.jid); got != tt.want {
			t.Errorf("ToID(%s) = %q, want %q", tt.jid, got, tt.want)
		}
	}

	for _, id := range []string{"8613812345678@c.us", "120363039010379837@g.us"} {
		jid, err := ToJID(id)
		if err != nil {
			t.Fatalf("ToJID(%q): %v", id, err)
		}
		if got := ToID(jid); got != id {
			t.Errorf("round trip of %q = %q", id, got)
		}
	}
}

func TestFillContent(t *testing.T) {
	tests := []struct {
		name     string
		msg      *waE2E.Message
		wantType MessageType
		wantBody string
		media    bool
	}{
		{"nil", nil, MessageTypeUnknown, "", false},
		{"empty", &waE2E.Message{}, MessageTypeUnknown, "", false},
		{"conversation", &waE2E.Message{Conversation: proto.String("hello")}, MessageTypeText, "hello", false},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("extended")}}, MessageTypeText, "extended", false},
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("look")}}, MessageTypeImage, "look", true},
		{"video", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{}}, MessageTypeVideo, "", true},
		{"audio", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{}}, MessageTypeAudio, "", true},
		{"voice note", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{PTT: proto.Bool(true)}}, MessageTypeVoice, "", true},
		{"document", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{FileName: proto.String("a.pdf")}}, MessageTypeDocument, "", true},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, MessageTypeSticker, "", true},
		{"contact", &waE2E.Message{ContactMessage: &waE2E.ContactMessage{Vcard: proto.String("BEGIN:VCARD")}}, MessageTypeContactCard, "BEGIN:VCARD", false},
		{"contacts", &waE2E.Message{ContactsArrayMessage: &waE2E.ContactsArrayMessage{}}, MessageTypeMultiContactCard, "", false},
		{"location", &waE2E.Message{LocationMessage: &waE2E.LocationMessage{}}, MessageTypeLocation, "", false},
		{"poll", &waE2E.Message{PollCreationMessage: &waE2E.PollCreationMessage{Name: proto.String("lunch?")}}, MessageTypePoll, "lunch?", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			fillContent(&m, tt.msg)
			if m.Type != tt.wantType {
				t.Errorf("type = %q, want %q", m.Type, tt.wantType)
			}
			if m.Body != tt.wantBody {
				t.Errorf("body = %q, want %q", m.Body, tt.wantBody)
			}
			if m.HasMedia != tt.media {
				t.Errorf("hasMedia = %v, want %v", m.HasMedia, tt.media)
			}
		})
	}
}

func TestFillContentDetails(t *testing.T) {
	var doc Message
	fillContent(&doc, &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{FileName: proto.String("report.pdf")}})
	if doc.Title != "report.pdf" {
		t.Errorf("document title = %q, want report.pdf", doc.Title)
	}

	var ext Message
	fillContent(&ext, &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
		Text:        proto.String("hi @8618710175700 see https://go.dev"),
		MatchedText: proto.String("https://go.dev"),
		Title:       proto.String("The Go Programming Language"),
		ContextInfo: &waE2E.ContextInfo{MentionedJID: []string{"8618710175700@s.whatsapp.net"}},
	}})
	if len(ext.MentionedIDs) != 1 || ext.MentionedIDs[0] != "8618710175700@c.us" {
		t.Errorf("mentions = %v", ext.MentionedIDs)
	}
	if len(ext.Links) != 1 || ext.Links[0].Link != "https://go.dev" {
		t.Errorf("links = %v", ext.Links)
	}
	if ext.Title != "The Go Programming Language" {
		t.Errorf("title = %q", ext.Title)
	}

	var inv Message
	fillContent(&inv, &waE2E.Message{GroupInviteMessage: &waE2E.GroupInviteMessage{
		GroupJID:         proto.String("120363039010379837@g.us"),
		InviteCode:       proto.String("Kx9LmN2pQr7StUv3WxYz1A"),
		InviteExpiration: proto.Int64(1700000000),
		GroupName:        proto.String("gophers"),
	}})
	if inv.Type != MessageTypeGroupInvite || inv.InviteV4 == nil {
		t.Fatalf("invite not detected: %+v", inv)
	}
	if inv.InviteV4.GroupID != "120363039010379837@g.us" || inv.InviteV4.InviteCode != "Kx9LmN2pQr7StUv3WxYz1A" {
		t.Errorf("invite = %+v", inv.InviteV4)
	}
}

func TestFillContentMediaUploaded(t *testing.T) {
	tests := []struct {
		name string
		m    *waE2E.Message
		want bool
	}{
		{"image with path", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{DirectPath: proto.String("/v/t62.7118-24/1.enc")}}, true},
		{"image without path", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, false},
		{"video with path", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{DirectPath: proto.String("/v/t62.7161-24/2.enc")}}, true},
		{"voice with path", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{PTT: proto.Bool(true), DirectPath: proto.String("/v/t62.7117-24/3.enc")}}, true},
		{"document with path", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{DirectPath: proto.String("/v/t62.7119-24/4.enc")}}, true},
		{"sticker with path", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{DirectPath: proto.String("/v/t62.15575-24/5.enc")}}, true},
		{"text", &waE2E.Message{Conversation: proto.String("hi")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			fillContent(&m, tt.m)
			if m.MediaUploaded != tt.want {
				t.Errorf("mediaUploaded = %v, want %v", m.MediaUploaded, tt.want)
			}
		})
	}
}

func TestConvertMessageAddressing(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	chat := types.NewJID("120363039010379837", types.GroupServer)
	sender := types.NewJID("8618710175700", types.DefaultUserServer)
	ts := time.Unix(1700000000, 0)

	in := a.convertMessage(ctx, types.MessageInfo{
		MessageSource: types.MessageSource{Chat: chat, Sender: sender, IsGroup: true},
		ID:            "ABC",
		Timestamp:     ts,
	}, &waE2E.Message{Conversation: proto.String("hello")})

	if in.ID.Remote() != "120363039010379837@g.us" || in.ID.ID != "ABC" {
		t.Errorf("key = %+v", in.ID)
	}
	if in.From != "120363039010379837@g.us" || in.Author != "8618710175700@c.us" {
		t.Errorf("from = %q author = %q", in.From, in.Author)
	}
	if in.Timestamp != 1700000000 {
		t.Errorf("timestamp = %d", in.Timestamp)
	}
	if in.ID.Serialized != "false_120363039010379837@g.us_ABC" {
		t.Errorf("serialized = %q", in.ID.Serialized)
	}

	dm := types.NewJID("8618710175700", types.DefaultUserServer)
	out := a.convertMessage(ctx, types.MessageInfo{
		MessageSource: types.MessageSource{Chat: dm, IsFromMe: true},
		ID:            "DEF",
		Timestamp:     ts,
	}, &waE2E.Message{Conversation: proto.String("hi")})
	if out.To != "8618710175700@c.us" || !out.FromMe || out.Ack != AckServer || out.Author != "" {
		t.Errorf("own message = %+v", out)
	}
}

func TestAckFromReceipt(t *testing.T) {
	tests := []struct {
		typ  types.ReceiptType
		want AckLevel
		ok   bool
	}{
		{types.ReceiptTypeDelivered, AckDevice, true},
		{types.ReceiptTypeRead, AckRead, true},
		{types.ReceiptTypePlayed, AckPlayed, true},
		{types.ReceiptTypeServerError, AckError, true},
		{types.ReceiptTypeRetry, 0, false},
	}
	for _, tt := range tests {
		got, ok := ackFromReceipt(tt.typ)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ackFromReceipt(%q) = %v, %v; want %v, %v", tt.typ, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBuildMessage(t *testing.T) {
	if got := buildMessage(Content{Text: "hi"}).GetConversation(); got != "hi" {
		t.Errorf("text = %q", got)
	}

	card := "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Tim\r\nEND:VCARD\r\n"
	cm := buildMessage(Content{ContactCard: card}).GetContactMessage()
	if cm.GetDisplayName() != "Tim" || cm.GetVcard() != card {
		t.Errorf("contact = %q %q", cm.GetDisplayName(), cm.GetVcard())
	}

	loc := buildMessage(Content{Location: &Location{Latitude: 1.5, Longitude: -2}}).GetLocationMessage()
	if loc.GetDegreesLatitude() != 1.5 || loc.GetDegreesLongitude() != -2 {
		t.Errorf("location = %v", loc)
	}
}

func TestConvertGroup(t *testing.T) {
	a := newTestAdapter(t)
	info := &types.GroupInfo{
		JID:       types.NewJID("120363039010379837", types.GroupServer),
		OwnerJID:  types.NewJID("8613812345678", types.DefaultUserServer),
		GroupName: types.GroupName{Name: "gophers"},
		Participants: []types.GroupParticipant{
			{JID: types.NewJID("8613812345678", types.DefaultUserServer), IsSuperAdmin: true},
			{JID: types.NewJID("99887766", types.HiddenUserServer), PhoneNumber: types.NewJID("8618710175700", types.DefaultUserServer)},
		},
	}
	g := a.convertGroup(context.Background(), info)
	if g.ID != "120363039010379837@g.us" || g.Name != "gophers" || g.OwnerID != "8613812345678@c.us" {
		t.Errorf("group = %+v", g)
	}
	ids := g.ParticipantIDs()
	if len(ids) != 2 || ids[1] != "8618710175700@c.us" {
		t.Errorf("participants = %v", ids)
	}
	if !g.Participants[0].IsSuperAdmin {
		t.Error("owner lost super admin flag")
	}
}
