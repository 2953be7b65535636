package model

import "time"

// MaxMessageLen caps test_data.message (VARCHAR(255)), counted in characters.
const MaxMessageLen = 255

// TimestampLayout is how created_at leaves the service.  Times are read in
// UTC, so the trailing Z is always present.
const TimestampLayout = time.RFC3339

// Record mirrors one row of the `test_data` table.  Unlike the repository
// structs elsewhere it carries JSON tags, since rows are returned to
// clients exactly as stored.
//
// Fields:
//  ID        – auto-increment primary key.
//  Message   – client text, at most MaxMessageLen characters.
//  Region    – region of the instance that accepted the write.
//  CreatedAt – insertion time formatted with TimestampLayout; nil when the column is NULL.
type Record struct {
	ID        uint64  `json:"id"`         // test_data.id
	Message   string  `json:"message"`    // test_data.message
	Region    string  `json:"region"`     // test_data.region
	CreatedAt *string `json:"created_at"` // test_data.created_at
}

// FormatTimestamp renders t the way created_at values are exposed.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// TruncateMessage keeps the first MaxMessageLen characters of msg.  It
// counts runes, not bytes, so multi-byte text is never split mid-character.
func TruncateMessage(msg string) string {
	if len(msg) <= MaxMessageLen {
		return msg
	}
	r := []rune(msg)
	if len(r) <= MaxMessageLen {
		return msg
	}
	return string(r[:MaxMessageLen])
}
