// Package identity converts user identifiers into carrier-safe client
// identities and back.
//
// The carrier's browser client refuses identities containing characters such
// as '@', '[' or '/'. Sanitize maps '@' to a reserved placeholder and every
// other character outside [A-Za-z0-9_.-] to '-'. Only the placeholder has a
// reverse mapping: Desanitize is defined for identities produced from input
// that contained no other disallowed characters and no literal placeholder.
// For arbitrary input the transform is lossy and one-way.
package identity

import "strings"

// AtPlaceholder stands in for '@' in a sanitized identity.
const AtPlaceholder = "_at_"

// ClientPrefix marks a caller that dialed from a registered software client.
const ClientPrefix = "client:"

// Sanitize returns the carrier-safe form of id.
func Sanitize(id string) string {
	id = strings.ReplaceAll(strings.TrimSpace(id), "@", AtPlaceholder)
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		if allowed(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('-')
	}
	return strings.Trim(b.String(), "-")
}

// Desanitize reverses the '@' placeholder substitution.
func Desanitize(token string) string {
	return strings.ReplaceAll(token, AtPlaceholder, "@")
}

// IsReversible reports whether Desanitize(Sanitize(id)) == id.
func IsReversible(id string) bool {
	if strings.Contains(id, AtPlaceholder) {
		return false
	}
	for _, r := range id {
		if r != '@' && !allowed(r) {
			return false
		}
	}
	return len(id) > 0 && id[0] != '-' && id[len(id)-1] != '-'
}

// FromCaller extracts the user key from a caller value of the form
// "client:<token>". ok is false when the caller is not a client identity.
func FromCaller(caller string) (user string, ok bool) {
	caller = strings.TrimSpace(caller)
	if !strings.HasPrefix(caller, ClientPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(caller, ClientPrefix))
	if token == "" {
		return "", false
	}
	return Desanitize(token), true
}

// ClientAddress is the dial target for a sanitized identity.
func ClientAddress(id string) string {
	return ClientPrefix + Sanitize(id)
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '.', r == '-':
		return true
	}
	return false
}
