// Package parser converts raw transport payloads into canonical payloads and
// builds the canonical events derived from group notifications. Everything
// here is pure: no I/O, no cache access.
package parser

import (
	"github.com/matheus3301/wpp-puppet/internal/model"
	"github.com/matheus3301/wpp-puppet/internal/wa"
)

// ReservedPushName is the push name the provider reports for accounts that
// never set one. The short name is used instead.
const ReservedPushName = "WhatsApp"

// ContactType classifies raw by its flags, in priority order.
func ContactType(raw *wa.Contact) model.ContactType {
	switch {
	case raw.IsUser:
		return model.ContactTypeIndividual
	case raw.IsEnterprise:
		return model.ContactTypeCorporation
	default:
		return model.ContactTypeUnknown
	}
}

// ParseContact builds the canonical contact. userName overrides the
// display name of the bot's own contact when non-empty.
func ParseContact(raw *wa.Contact, userName string) *model.Contact {
	c := &model.Contact{
		ID:          raw.ID,
		Type:        ContactType(raw),
		Gender:      model.ContactGenderUnknown,
		Name:        contactName(raw, userName),
		Avatar:      raw.Avatar,
		Friend:      raw.IsMyContact && raw.IsUser,
		Description: raw.Description,
	}
	if raw.Number != "" {
		c.Phone = []string{raw.Number}
	}
	if raw.IsBusiness || raw.IsEnterprise {
		c.Corporation = raw.Name
	}
	return c
}

func contactName(raw *wa.Contact, userName string) string {
	if raw.IsMe {
		if userName != "" {
			return userName
		}
		if raw.PushName == ReservedPushName && raw.ShortName != "" {
			return raw.ShortName
		}
		return raw.PushName
	}
	switch {
	case raw.PushName != "":
		return raw.PushName
	case raw.Name != "":
		return raw.Name
	default:
		return raw.ID
	}
}
