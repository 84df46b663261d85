// internal/directory/directory_test.go
package directory

import (
	"sync"
	"testing"
	"time"
)

func TestStaticLookup(t *testing.T) {
	dir := Static{"wang01": "王小明", "chen02": "陳大文"}

	if got := dir.DisplayName("wang01"); got != "王小明" {
		t.Errorf("DisplayName(wang01) = %q", got)
	}
	if got := dir.DisplayName("unknown"); got != "unknown" {
		t.Errorf("DisplayName(unknown) = %q, want pass-through", got)
	}

	users := dir.SearchUsernames("小明")
	if len(users) != 1 || users[0] != "wang01" {
		t.Errorf("SearchUsernames(小明) = %v, want [wang01]", users)
	}
	if got := dir.SearchUsernames(""); got != nil {
		t.Errorf("SearchUsernames(\"\") = %v, want nil", got)
	}
}

// countingLookup records how often the backing directory is consulted.
type countingLookup struct {
	mu       sync.Mutex
	names    int
	searches int
}

func (c *countingLookup) DisplayName(username string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names++
	return "DN-" + username
}

func (c *countingLookup) SearchUsernames(q string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searches++
	return []string{"u-" + q}
}

func TestCachedAvoidsRepeatLookups(t *testing.T) {
	backing := &countingLookup{}
	dir := NewCached(backing, time.Minute)

	for i := 0; i < 3; i++ {
		if got := dir.DisplayName("wang01"); got != "DN-wang01" {
			t.Fatalf("DisplayName = %q", got)
		}
		if got := dir.SearchUsernames("Wang"); len(got) != 1 {
			t.Fatalf("SearchUsernames = %v", got)
		}
	}
	if backing.names != 1 {
		t.Errorf("backing name lookups = %d, want 1", backing.names)
	}
	if backing.searches != 1 {
		t.Errorf("backing searches = %d, want 1", backing.searches)
	}

	dir.Clear()
	dir.DisplayName("wang01")
	if backing.names != 2 {
		t.Errorf("backing name lookups after Clear = %d, want 2", backing.names)
	}
}

func TestCachedSearchKeyNormalization(t *testing.T) {
	backing := &countingLookup{}
	dir := NewCached(backing, time.Minute)

	dir.SearchUsernames("Wang")
	dir.SearchUsernames("  wang ")
	if backing.searches != 1 {
		t.Errorf("backing searches = %d, want 1 (case/space-insensitive key)", backing.searches)
	}
}

func TestFormatUser(t *testing.T) {
	dir := Static{"wang01": "王小明"}

	if got := FormatUser(dir, "wang01"); got != "王小明 (wang01)" {
		t.Errorf("FormatUser = %q", got)
	}
	if got := FormatUser(dir, "unknown"); got != "unknown" {
		t.Errorf("FormatUser for unknown = %q", got)
	}
	if got := FormatUser(Nop{}, "wang01"); got != "wang01" {
		t.Errorf("FormatUser with Nop = %q", got)
	}
	if got := FormatUser(nil, "wang01"); got != "wang01" {
		t.Errorf("FormatUser with nil = %q", got)
	}
}
