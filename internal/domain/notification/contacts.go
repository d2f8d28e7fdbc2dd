package notification

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// LicenceContact is one contact held against a licence.
type LicenceContact struct {
	LicenceRef   string
	ContactType  ContactType
	Name         string
	Email        string
	AddressLines []string
	Postcode     string
	Country      string
}

// BuildRecipients chooses the contacts to notify for each licence and merges
// contacts shared between licences into one Recipient.
//
// A licence with a registered primary user is notified by email (primary
// user and returns agent); any other licence is notified by letter (licence
// holder and returns to). The channel is fixed here, once.
func BuildRecipients(contacts []LicenceContact) []*Recipient {
	byLicence := make(map[string][]LicenceContact)
	licenceOrder := make([]string, 0)
	for _, c := range contacts {
		if _, seen := byLicence[c.LicenceRef]; !seen {
			licenceOrder = append(licenceOrder, c.LicenceRef)
		}
		byLicence[c.LicenceRef] = append(byLicence[c.LicenceRef], c)
	}

	recipients := make([]*Recipient, 0)
	byHash := make(map[string]*Recipient)

	for _, ref := range licenceOrder {
		for _, c := range selectContacts(byLicence[ref]) {
			contact := toContact(c)
			hash := contactHash(contact)
			if existing, ok := byHash[hash]; ok {
				if !containsString(existing.LicenceRefs, ref) {
					existing.LicenceRefs = append(existing.LicenceRefs, ref)
					sort.Strings(existing.LicenceRefs)
				}
				continue
			}
			r := &Recipient{
				ContactHash: hash,
				ContactType: c.ContactType,
				LicenceRefs: []string{ref},
				Contact:     contact,
			}
			byHash[hash] = r
			recipients = append(recipients, r)
		}
	}
	return recipients
}

func selectContacts(contacts []LicenceContact) []LicenceContact {
	hasPrimaryUser := false
	for _, c := range contacts {
		if c.ContactType == ContactTypePrimaryUser && c.Email != "" {
			hasPrimaryUser = true
			break
		}
	}

	selected := make([]LicenceContact, 0, len(contacts))
	for _, c := range contacts {
		switch c.ContactType {
		case ContactTypePrimaryUser, ContactTypeReturnsAgent:
			if hasPrimaryUser && c.Email != "" {
				selected = append(selected, c)
			}
		case ContactTypeLicenceHolder, ContactTypeReturnsTo:
			if !hasPrimaryUser {
				selected = append(selected, c)
			}
		}
	}
	return selected
}

func toContact(c LicenceContact) Contact {
	if c.ContactType == ContactTypePrimaryUser || c.ContactType == ContactTypeReturnsAgent {
		return EmailContact{Address: strings.TrimSpace(c.Email)}
	}
	return PostalContact{
		Name:         c.Name,
		AddressLines: c.AddressLines,
		Postcode:     c.Postcode,
		Country:      c.Country,
	}
}

func contactHash(c Contact) string {
	var key string
	switch v := c.(type) {
	case EmailContact:
		key = strings.ToLower(v.Address)
	case PostalContact:
		parts := make([]string, 0, len(v.AddressLines)+3)
		parts = append(parts, v.Name)
		parts = append(parts, v.AddressLines...)
		parts = append(parts, v.Postcode, v.Country)
		key = strings.ToLower(strings.Join(parts, "|"))
	}
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
