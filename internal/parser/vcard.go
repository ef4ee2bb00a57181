package parser

import (
	"bytes"
	"strings"

	"github.com/emersion/go-vcard"
	"github.com/matheus3301/wpp-puppet/internal/errs"
	"github.com/matheus3301/wpp-puppet/internal/wa"
)

const waidParam = "waid"

// Telephone is one TEL entry of a contact card.
type Telephone struct {
	Number string
	// WAID is the contact id of the number, e.g. "8613240330438@c.us".
	WAID string
}

// ContactCard is a decoded single-contact vCard.
type ContactCard struct {
	Name string
	TEL  []Telephone
}

// ContactID returns the contact id of the card's only phone number.
func (c *ContactCard) ContactID() string {
	return c.TEL[0].WAID
}

// ParseVCard decodes a contact card carrying exactly one phone number.
func ParseVCard(text string) (*ContactCard, error) {
	card, err := vcard.NewDecoder(strings.NewReader(text)).Decode()
	if err != nil {
		return nil, errs.New(errs.CodeContactCardParse, "decode: %v", err)
	}

	fields := card[vcard.FieldTelephone]
	if len(fields) != 1 {
		return nil, errs.New(errs.CodeContactCardParse, "want one TEL, got %d", len(fields))
	}

	tel := Telephone{Number: fields[0].Value}
	waid := paramValue(fields[0].Params, waidParam)
	if waid == "" {
		waid = digits(tel.Number)
	}
	if waid == "" {
		return nil, errs.New(errs.CodeContactCardParse, "TEL %q has no number", tel.Number)
	}
	tel.WAID = waid + wa.ContactSuffix

	return &ContactCard{Name: card.Value(vcard.FieldFormattedName), TEL: []Telephone{tel}}, nil
}

// BuildVCard encodes contact as a vCard the provider renders as a contact
// message.
func BuildVCard(contact *wa.Contact) (string, error) {
	number := contact.Number
	if number == "" {
		number = strings.TrimSuffix(contact.ID, wa.ContactSuffix)
	}
	name := contact.PushName
	if name == "" {
		name = contact.Name
	}
	if name == "" {
		name = number
	}

	card := vcard.Card{}
	card.SetValue(vcard.FieldVersion, "3.0")
	card.SetValue(vcard.FieldFormattedName, name)
	card.Add(vcard.FieldTelephone, &vcard.Field{
		Value:  "+" + number,
		Params: vcard.Params{waidParam: {number}},
		Group:  "item1",
	})

	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(card); err != nil {
		return "", errs.New(errs.CodeContactCardParse, "encode %s: %v", contact.ID, err)
	}
	return buf.String(), nil
}

// paramValue looks a vCard parameter up by name, ignoring case.
func paramValue(params vcard.Params, name string) string {
	for k, vs := range params {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
