// internal/export/artifacts.go
package export

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Kind selects which device report an artifact holds.
type Kind string

const (
	KindUserCount Kind = "usercount"
	KindJobLog    Kind = "joblog"
)

// timestampLayout is the capture-time suffix embedded in artifact names.
const timestampLayout = "20060102-150405"

// Prefix returns the filename prefix used for a kind.
func (k Kind) Prefix() string {
	if k == KindUserCount {
		return "uc"
	}
	return "joblog"
}

// HostTag derives a filesystem-safe identifier from a printer base URL:
// the host:port with ":" replaced by "_".
func HostTag(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return strings.ReplaceAll(strings.TrimPrefix(strings.TrimPrefix(base, "http://"), "https://"), ":", "_")
	}
	return strings.ReplaceAll(u.Host, ":", "_")
}

// ArtifactPath builds the destination path for a capture:
// <root>/<kind>/<prefix>_<hosttag>_<YYYYMMDD-HHMMSS>.csv
func ArtifactPath(root string, kind Kind, base string, t time.Time) string {
	name := fmt.Sprintf("%s_%s_%s.csv", kind.Prefix(), HostTag(base), t.Format(timestampLayout))
	return filepath.Join(root, string(kind), name)
}

// CaptureTime parses the trailing _YYYYMMDD-HHMMSS stamp from an artifact
// filename. The second return is false when the name does not carry one.
func CaptureTime(path string) (time.Time, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	i := strings.LastIndex(stem, "_")
	if i < 0 {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(timestampLayout, stem[i+1:], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Latest returns the newest artifact for a kind and printer, or "" when
// none exists. Ordering follows the timestamp embedded in the name.
func Latest(root string, kind Kind, base string) string {
	pattern := filepath.Join(root, string(kind), kind.Prefix()+"_"+HostTag(base)+"_*.csv")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[len(matches)-1]
}

// Cleanup prunes old artifacts, keeping the `keep` most recent per
// (kind, host tag) group. Returns the paths it removed.
func Cleanup(root string, keep int) ([]string, error) {
	var removed []string
	for _, kind := range []Kind{KindUserCount, KindJobLog} {
		dir := filepath.Join(root, string(kind))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("read %s: %w", dir, err)
		}

		byTag := make(map[string][]string)
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
				continue
			}
			// name: prefix_tag_timestamp.csv, tag may itself contain "_"
			stem := strings.TrimSuffix(e.Name(), ".csv")
			parts := strings.Split(stem, "_")
			if len(parts) < 3 {
				continue
			}
			tag := strings.Join(parts[1:len(parts)-1], "_")
			byTag[tag] = append(byTag[tag], e.Name())
		}

		for _, names := range byTag {
			if len(names) <= keep {
				continue
			}
			// timestamp suffix sorts lexicographically
			sort.Sort(sort.Reverse(sort.StringSlice(names)))
			for _, name := range names[keep:] {
				p := filepath.Join(dir, name)
				if err := os.Remove(p); err != nil {
					return removed, fmt.Errorf("remove %s: %w", p, err)
				}
				removed = append(removed, p)
			}
		}
	}
	return removed, nil
}
