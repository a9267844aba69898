// Package record holds the row representation shared by export, import and
// validation, and the value normalisation that makes rows from different
// drivers comparable.
package record

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"db-shift/internal/schema"
)

var errNotStructured = errors.New("not a JSON object or array")

// Row is one table row keyed by column name.
type Row = map[string]any

// TimestampTolerance is how far apart two timestamp-shaped values may be and still match.
const TimestampTolerance = time.Second

// ISOLayout matches JavaScript's Date.toISOString output.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseTime accepts the timestamp renderings produced by the supported drivers.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatISO renders t in the canonical UTC ISO-8601 form.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ID returns the row's id as a string, or "" when it has none.
func ID(row Row) string {
	v, ok := row["id"]
	if !ok || v == nil {
		return ""
	}
	switch id := v.(type) {
	case []byte:
		return string(id)
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// Normalize converts a driver value into a canonical, JSON-stable form:
// byte slices become strings (base64 when not UTF-8), integral numbers become int64, times and
// timestamp-shaped strings become canonical ISO strings.
func Normalize(field string, v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		if !utf8.Valid(val) {
			return base64.StdEncoding.EncodeToString(val)
		}
		return Normalize(field, string(val))
	case time.Time:
		return FormatISO(val)
	case string:
		if schema.IsTimestampField(field) {
			if t, ok := ParseTime(val); ok {
				return FormatISO(t)
			}
		}
		return val
	case bool:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val)
		}
		return strconv.FormatUint(val, 10)
	case float32:
		return normalizeFloat(float64(val))
	case float64:
		return normalizeFloat(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return val.String()
	}
	return v
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// NormalizeRow applies Normalize to every field of a row.
func NormalizeRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = Normalize(k, v)
	}
	return out
}

// asTime interprets a value as an instant when possible.
func asTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		return ParseTime(val)
	case []byte:
		return ParseTime(string(val))
	}
	return time.Time{}, false
}

// ValuesEqual reports whether two values of the same field match. Values are
// equal when identical after normalisation, or, for timestamp-shaped fields,
// when both parse as instants within TimestampTolerance.
func ValuesEqual(field string, a, b any) bool {
	na, nb := Normalize(field, a), Normalize(field, b)
	if reflect.DeepEqual(na, nb) {
		return true
	}
	if schema.IsTimestampField(field) {
		ta, okA := asTime(a)
		tb, okB := asTime(b)
		if okA && okB {
			d := ta.Sub(tb)
			if d < 0 {
				d = -d
			}
			return d <= TimestampTolerance
		}
	}
	if ba, ok := na.(bool); ok {
		return boolMatchesInt(ba, nb)
	}
	if bb, ok := nb.(bool); ok {
		return boolMatchesInt(bb, na)
	}
	// Numeric strings from decimal columns against native numbers. Two
	// strings are text: "007" and "7" differ.
	if isNumber(na) || isNumber(nb) {
		if fa, okA := asFloat(na); okA {
			if fb, okB := asFloat(nb); okB {
				return fa == fb
			}
		}
	}
	// JSON columns may come back as text on one side and decoded on the other.
	return jsonEqual(na, nb)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

// boolMatchesInt covers drivers that store booleans as 0/1.
func boolMatchesInt(b bool, other any) bool {
	i, ok := other.(int64)
	if !ok {
		return false
	}
	return (b && i == 1) || (!b && i == 0)
}

func asFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	}
	return 0, false
}

func jsonEqual(a, b any) bool {
	ja, err := canonicalJSON(a)
	if err != nil {
		return false
	}
	jb, err := canonicalJSON(b)
	if err != nil {
		return false
	}
	return ja == jb
}

// canonicalJSON only decodes strings holding a JSON object or array, so
// scalar text is never reinterpreted as a number.
func canonicalJSON(v any) (string, error) {
	if s, ok := v.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return "", err
		}
		switch decoded.(type) {
		case map[string]any, []any:
		default:
			return "", errNotStructured
		}
		v = decoded
	}
	out, err := json.Marshal(v)
	return string(out), err
}

// Mismatch describes one differing field between two rows.
type Mismatch struct {
	Field     string `json:"field"`
	Source    any    `json:"source"`
	Target    any    `json:"target"`
	Timestamp bool   `json:"timestamp"`
}

// Diff compares every field present in want against got.
func Diff(want, got Row) []Mismatch {
	var out []Mismatch
	for field, wv := range want {
		gv, ok := got[field]
		if ok && ValuesEqual(field, wv, gv) {
			continue
		}
		out = append(out, Mismatch{
			Field:     field,
			Source:    Normalize(field, wv),
			Target:    Normalize(field, gv),
			Timestamp: schema.IsTimestampField(field),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
