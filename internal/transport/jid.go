// internal/transport/jid.go
package transport

import "strings"

const userServer = "@s.whatsapp.net"

// FormatJID turns a phone number into a user JID. Values that already carry a server are returned as is.
func FormatJID(contact string) string {
	if strings.Contains(contact, "@") {
		return contact
	}
	var b strings.Builder
	for _, r := range contact {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String() + userServer
}

// PhoneFromJID returns the user part of a JID.
func PhoneFromJID(jid string) string {
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		return jid[:i]
	}
	return jid
}

// IsGroup reports whether the JID addresses a group chat.
func IsGroup(jid string) bool {
	return strings.HasSuffix(jid, "@g.us")
}
