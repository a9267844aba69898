package schema

import (
	"strings"

	"github.com/google/uuid"
)

var abbreviations = map[string]string{
	// Common Nouns
	"nm": "name", "dt": "date", "no": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "ph": "phone",
	"pwd": "password", "passwd": "password",
	"msg": "message", "txt": "text", "doc": "document", "usr": "user",
	"dept": "department", "grp": "group", "cat": "category",
	"bal": "balance", "tm": "time", "ts": "timestamp", "tstamp": "timestamp",
	"dttm": "datetime", "ymd": "date",

	// Verbs / Status
	"reg": "registered", "mod": "modified", "del": "deleted", "cre": "created",
	"crt": "created", "upd": "updated", "stat": "status", "sts": "status",
	"typ": "type", "val": "value", "seq": "sequence", "idx": "index",
}

// timestampWords are decoded final words that mark a timestamp-shaped field.
var timestampWords = map[string]bool{
	"at": true, "date": true, "time": true, "timestamp": true, "datetime": true, "on": true,
}

// bareTimestampNames are whole field names that carry a timestamp on their own.
var bareTimestampNames = map[string]bool{
	"timestamp": true, "created": true, "updated": true, "deleted": true,
	"modified": true, "datetime": true,
}

// DecodeFieldName expands abbreviated snake_case parts, e.g. "reg_dt" -> "registered date".
func DecodeFieldName(name string) string {
	parts := strings.Split(strings.ToLower(name), "_")
	decoded := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if full, ok := abbreviations[part]; ok {
			decoded = append(decoded, full)
		} else {
			decoded = append(decoded, part)
		}
	}
	return strings.Join(decoded, " ")
}

// IsTimestampField reports whether a field name follows a timestamp convention
// (created_at, updated_on, reg_dt, event_time, ...).
func IsTimestampField(name string) bool {
	n := strings.ToLower(name)
	if bareTimestampNames[n] {
		return true
	}
	if !strings.Contains(n, "_") {
		return false
	}
	words := strings.Fields(DecodeFieldName(n))
	if len(words) < 2 {
		return false
	}
	return timestampWords[words[len(words)-1]]
}

// IsUUID reports whether s is a canonical 36-character UUID string.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
