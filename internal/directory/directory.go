// internal/directory/directory.go
//
// Display-name lookup against the campus directory. Reports use it to show
// "Chan Tai Man (ctm123)" instead of raw login names and to expand a
// display-name search into usernames; the export/ingest pipeline never
// depends on it.
package directory

import (
	"strings"
	"sync"
	"time"
)

// Lookup resolves between usernames and directory display names.
type Lookup interface {
	// DisplayName returns the display name for a username, or the
	// username itself when the directory has no entry.
	DisplayName(username string) string

	// SearchUsernames returns usernames whose display name contains the
	// given substring (case-insensitive).
	SearchUsernames(displayNameQuery string) []string
}

// Nop is a Lookup that resolves nothing; reports fall back to raw names.
type Nop struct{}

func (Nop) DisplayName(username string) string { return username }
func (Nop) SearchUsernames(string) []string    { return nil }

// Static is a fixed username->display-name map, used in tests and small
// deployments without a directory server.
type Static map[string]string

func (s Static) DisplayName(username string) string {
	if dn, ok := s[username]; ok && dn != "" {
		return dn
	}
	return username
}

func (s Static) SearchUsernames(q string) []string {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}
	var out []string
	for user, dn := range s {
		if strings.Contains(strings.ToLower(dn), q) {
			out = append(out, user)
		}
	}
	return out
}

type cacheEntry struct {
	value   string
	values  []string
	expires time.Time
}

// Cached wraps a Lookup with a TTL in-memory cache. Directory data churns
// slowly; repeated report queries should not hammer the server.
type Cached struct {
	next Lookup
	ttl  time.Duration

	mu       sync.Mutex
	names    map[string]cacheEntry
	searches map[string]cacheEntry
}

// NewCached wraps next with a cache; ttl <= 0 defaults to 15 minutes.
func NewCached(next Lookup, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cached{
		next:     next,
		ttl:      ttl,
		names:    make(map[string]cacheEntry),
		searches: make(map[string]cacheEntry),
	}
}

func (c *Cached) DisplayName(username string) string {
	now := time.Now()
	c.mu.Lock()
	if e, ok := c.names[username]; ok && now.Before(e.expires) {
		c.mu.Unlock()
		return e.value
	}
	c.mu.Unlock()

	dn := c.next.DisplayName(username)
	c.mu.Lock()
	c.names[username] = cacheEntry{value: dn, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return dn
}

func (c *Cached) SearchUsernames(q string) []string {
	key := strings.ToLower(strings.TrimSpace(q))
	now := time.Now()
	c.mu.Lock()
	if e, ok := c.searches[key]; ok && now.Before(e.expires) {
		c.mu.Unlock()
		return e.values
	}
	c.mu.Unlock()

	users := c.next.SearchUsernames(q)
	c.mu.Lock()
	c.searches[key] = cacheEntry{values: users, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return users
}

// Clear drops all cached entries.
func (c *Cached) Clear() {
	c.mu.Lock()
	c.names = make(map[string]cacheEntry)
	c.searches = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// FormatUser renders "Display Name (username)" when the directory knows
// the user, otherwise just the username.
func FormatUser(l Lookup, username string) string {
	if l == nil || username == "" {
		return username
	}
	dn := l.DisplayName(username)
	if dn == "" || dn == username {
		return username
	}
	return dn + " (" + username + ")"
}
