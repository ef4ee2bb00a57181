package parser

import (
	"regexp"

	"github.com/matheus3301/wpp-puppet/internal/model"
	"github.com/matheus3301/wpp-puppet/internal/wa"
)

var inviteLinkRe = regexp.MustCompile(`https?://chat\.whatsapp\.com/(?:invite/)?([0-9A-Za-z]{20,24})`)

// InviteCodes returns the codes of every group invite link in text.
func InviteCodes(text string) []string {
	var codes []string
	for _, m := range inviteLinkRe.FindAllStringSubmatch(text, -1) {
		codes = append(codes, m[1])
	}
	return codes
}

// DetectInvite reports whether raw is a group invitation: either a
// structured invite message or a text message with exactly one invite link.
// The returned record is keyed by its invite code.
func DetectInvite(raw *wa.Message) (*wa.RoomInvitation, bool) {
	inviter := raw.Author
	if inviter == "" {
		inviter = raw.From
	}

	switch raw.Type {
	case wa.MessageTypeGroupInvite:
		v4 := raw.InviteV4
		if v4 == nil || v4.InviteCode == "" {
			return nil, false
		}
		return &wa.RoomInvitation{
			ID:         v4.InviteCode,
			InviteCode: v4.InviteCode,
			InviterID:  inviter,
			ReceiverID: raw.To,
			GroupName:  v4.GroupName,
			Timestamp:  raw.Timestamp,
			InviteV4:   v4,
		}, true
	case wa.MessageTypeText:
		codes := InviteCodes(raw.Body)
		if len(codes) != 1 {
			return nil, false
		}
		return &wa.RoomInvitation{
			ID:         codes[0],
			InviteCode: codes[0],
			InviterID:  inviter,
			ReceiverID: raw.To,
			Timestamp:  raw.Timestamp,
		}, true
	}
	return nil, false
}

// ParseRoomInvitation builds the canonical invitation.
func ParseRoomInvitation(raw *wa.RoomInvitation) *model.RoomInvitation {
	return &model.RoomInvitation{
		ID:         raw.ID,
		InviterID:  raw.InviterID,
		ReceiverID: raw.ReceiverID,
		Topic:      raw.GroupName,
		Timestamp:  raw.Timestamp,
	}
}
