package roomview

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/vovakirdan/roomchat/internal/store"
)

// FormatTimestamp renders ts as "DD/MM/YY - HH:MM" in loc, or "" when unset.
//
// YY is the last two characters of "0" followed by the year minus 1900.
func FormatTimestamp(ts store.Timestamp, loc *time.Location) string {
	t, ok := ts.Time()
	if !ok {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)

	return fmt.Sprintf("%02d/%02d/%s - %02d:%02d",
		t.Day(), int(t.Month()), shortYear(t.Year()), t.Hour(), t.Minute())
}

func shortYear(year int) string {
	s := "0" + strconv.Itoa(year-1900)
	return s[len(s)-2:]
}

// truncate cuts s to at most limit characters.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// Length counts characters the way the length cap does.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}
