// internal/domain/notification/recipient.go
package notification

import "strings"

// Contact is how a recipient is reached: either EmailContact or PostalContact.
type Contact interface {
	MessageType() MessageType
	contact()
}

// EmailContact is a recipient reached by email.
type EmailContact struct {
	Address string
}

func (EmailContact) MessageType() MessageType { return MessageTypeEmail }
func (EmailContact) contact()                 {}

// PostalContact is a recipient reached by letter.
type PostalContact struct {
	Name         string
	AddressLines []string // in order, blanks already removed
	Postcode     string
	Country      string
}

func (PostalContact) MessageType() MessageType { return MessageTypeLetter }
func (PostalContact) contact()                 {}

// ContactType is the role a recipient holds on the licences they are contacted for.
type ContactType string

const (
	ContactTypePrimaryUser   ContactType = "primary user"
	ContactTypeReturnsAgent  ContactType = "returns agent"
	ContactTypeLicenceHolder ContactType = "licence holder"
	ContactTypeReturnsTo     ContactType = "returns to"
)

// Recipient is a deduplicated contact with every licence it is being
// notified about.
type Recipient struct {
	ContactHash string
	ContactType ContactType
	LicenceRefs []string
	Contact     Contact
}

// LetterAddressLines returns the personalisation lines Notify expects for a
// letter: the name first, then the address, ending with the postcode (or
// the country for addresses abroad). Notify accepts at most seven lines so
// any overflow is joined into the sixth.
func (p PostalContact) LetterAddressLines() []string {
	lines := make([]string, 0, len(p.AddressLines)+3)
	if strings.TrimSpace(p.Name) != "" {
		lines = append(lines, p.Name)
	}
	for _, l := range p.AddressLines {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if p.Postcode != "" {
		lines = append(lines, p.Postcode)
	}
	if p.Country != "" && !strings.EqualFold(p.Country, "united kingdom") {
		lines = append(lines, p.Country)
	}

	if len(lines) > 7 {
		head := lines[:5]
		middle := strings.Join(lines[5:len(lines)-1], ", ")
		folded := append(append([]string{}, head...), middle, lines[len(lines)-1])
		return folded
	}
	return lines
}
