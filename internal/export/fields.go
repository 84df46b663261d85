// internal/export/fields.go
package export

import (
	"strconv"
	"strings"
	"time"
)

// Header aliases per canonical field: localized name first, English
// fallback second. Firmware revisions ship either.
var (
	aliasJobID        = []string{"工作ID", "Job ID"}
	aliasAccountJobID = []string{"帳戶工作ID", "Account Job ID"}
	aliasMode         = []string{"工作模式", "Job Mode", "Mode"}
	aliasComputer     = []string{"電腦名稱", "Computer Name"}
	aliasUser         = []string{"用戶名稱", "User Name"}
	aliasLogin        = []string{"登入名稱", "Login Name"}
	aliasStart        = []string{"開始日期", "Start Date"}
	aliasEnd          = []string{"完成日期", "Completion Date"}
	aliasBW           = []string{"黑白總張數", "B/W Total Pages"}
	aliasColor        = []string{"全彩總張數", "Full Color Total Pages"}
	aliasFileName     = []string{"檔案名稱", "File Name"}
	aliasScanType     = []string{"傳送類型", "Transmission Type"}
	aliasDestination  = []string{"直接位址", "Direct Address"}
)

// field returns the first present alias value; absent fields are "".
func field(row map[string]string, aliases []string) string {
	for _, name := range aliases {
		if v, ok := row[name]; ok && v != "" {
			return v
		}
	}
	return ""
}

// notApplicable tokens coerce to 0. 無限制 is the unlimited marker the
// device prints for unmetered accounts.
var notApplicable = map[string]bool{
	"n/a": true,
	"na":  true,
	"無限制": true,
}

// timeLayouts is the ordered list of formats the device has been seen to
// emit; first match wins.
var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006-01-02",
}

// ParseTime coerces a device date field. Empty, "N/A" and unrecognized
// values yield the zero time, never an error.
func ParseTime(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "N/A") {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// NormalizeName trims a name field and substitutes fallback when empty.
func NormalizeName(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

// coerceInt implements the best-effort numeric policy: strip thousands
// separators and whitespace, map not-applicable tokens to 0, try integer
// then float-truncate parsing, and give up with 0. The bool reports
// whether the value had to be zeroed without being a recognized token.
func coerceInt(v string) (int, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" || notApplicable[strings.ToLower(cleaned)] {
		return 0, false
	}
	if n, err := strconv.Atoi(cleaned); err == nil {
		return n, false
	}
	if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return int(f), false
	}
	return 0, true
}
