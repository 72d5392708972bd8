package security

import "strings"

// Authorizer checks if a user is allowed to talk to the companion.
// An entry ending in ":*" admits every user of that channel, e.g.
// "telegram:*".
type Authorizer struct {
	allowedIDs map[string]bool
	prefixes   []string
}

// NewAuthorizer creates an authorizer with the given allowed user IDs.
// If the list is empty, all users are allowed.
func NewAuthorizer(allowedIDs []string) *Authorizer {
	a := &Authorizer{allowedIDs: make(map[string]bool, len(allowedIDs))}
	for _, id := range allowedIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(id, "*"); ok && strings.HasSuffix(prefix, ":") {
			a.prefixes = append(a.prefixes, prefix)
			continue
		}
		a.allowedIDs[id] = true
	}
	return a
}

// IsAllowed returns true if the user is authorized.
func (a *Authorizer) IsAllowed(userID string) bool {
	if a == nil || (len(a.allowedIDs) == 0 && len(a.prefixes) == 0) {
		return true // no allowlist = allow all
	}
	if a.allowedIDs[userID] {
		return true
	}
	for _, p := range a.prefixes {
		if strings.HasPrefix(userID, p) {
			return true
		}
	}
	return false
}
