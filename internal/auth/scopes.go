package auth

import "strings"

// ParseScopes splits a scope parameter on delim, dropping empty entries and
// duplicates while keeping the first-seen order.
func ParseScopes(raw, delim string) []string {
	if delim == "" {
		delim = " "
	}
	var scopes []string
	seen := make(map[string]struct{})
	for _, s := range strings.Split(raw, delim) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		scopes = append(scopes, s)
	}
	return scopes
}

// DedupeScopes drops repeated scopes, keeping the first-seen order.
func DedupeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return scopes
	}
	out := make([]string, 0, len(scopes))
	seen := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// JoinScopes is the inverse of ParseScopes.
func JoinScopes(scopes []string, delim string) string {
	if delim == "" {
		delim = " "
	}
	return strings.Join(scopes, delim)
}

// ValidScopeToken reports whether s is a scope-token as defined by RFC 6749
// section 3.3: printable ASCII without space, double quote or backslash.
func ValidScopeToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x21 || c > 0x7e || c == '"' || c == '\\' {
			return false
		}
	}
	return true
}
