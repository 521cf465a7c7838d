// Package users provides the static user credential lookup: user name to
// Meetup session cookie. Credentials come from configuration and are
// never logged.
package users

import (
	"sort"

	"github.com/courtside/rsvpd/config"
)

// Store holds the configured users. Read-only after construction.
type Store struct {
	cookies map[string]string
}

// NewStore builds a store from the configured user map
func NewStore(cfg map[string]config.UserConfig) *Store {
	cookies := make(map[string]string, len(cfg))
	for name, user := range cfg {
		cookies[name] = user.Cookie
	}
	return &Store{cookies: cookies}
}

// Lookup returns the session cookie for a user name
func (s *Store) Lookup(name string) (string, bool) {
	cookie, ok := s.cookies[name]
	return cookie, ok
}

// Names returns all known user names, sorted
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.cookies))
	for name := range s.cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of configured users
func (s *Store) Len() int {
	return len(s.cookies)
}
