package record_test

import (
	"testing"
	"time"

	"db-shift/internal/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	assert.Equal(t, "abc", record.ID(record.Row{"id": "abc"}))
	assert.Equal(t, "abc", record.ID(record.Row{"id": []byte("abc")}))
	assert.Equal(t, "42", record.ID(record.Row{"id": int64(42)}))
	assert.Equal(t, "", record.ID(record.Row{"id": nil}))
	assert.Equal(t, "", record.ID(record.Row{"name": "x"}))
}

func TestNormalize(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.FixedZone("KST", 9*3600))

	assert.Equal(t, "2024-05-01T03:30:00.000Z", record.Normalize("created_at", at))
	assert.Equal(t, "2024-05-01T03:30:00.000Z", record.Normalize("created_at", "2024-05-01 03:30:00"))
	assert.Equal(t, "2024-05-01 03:30:00", record.Normalize("title", "2024-05-01 03:30:00"))
	assert.Equal(t, "hello", record.Normalize("name", []byte("hello")))
	assert.Equal(t, int64(7), record.Normalize("count", int32(7)))
	assert.Equal(t, int64(7), record.Normalize("count", 7.0))
	assert.Equal(t, 7.5, record.Normalize("amount", float32(7.5)))
	assert.Nil(t, record.Normalize("x", nil))
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, record.ValuesEqual("updated_at", "2024-05-01T03:30:00Z", "2024-05-01T03:30:00.900Z"))
	assert.False(t, record.ValuesEqual("updated_at", "2024-05-01T03:30:00Z", "2024-05-01T03:30:02Z"))
	assert.True(t, record.ValuesEqual("active", true, int64(1)))
	assert.True(t, record.ValuesEqual("active", int64(0), false))
	assert.True(t, record.ValuesEqual("amount", "10.50", 10.5))
	assert.True(t, record.ValuesEqual("meta", `{"b":1,"a":2}`, map[string]any{"a": 2, "b": 1}))
	assert.False(t, record.ValuesEqual("name", "alice", "bob"))

	// Text columns keep their exact spelling.
	assert.False(t, record.ValuesEqual("zip_code", "007", "7"))
	assert.False(t, record.ValuesEqual("code", "1.0", "1"))
	assert.False(t, record.ValuesEqual("code", "0x10", "16"))
	assert.False(t, record.ValuesEqual("phone", []byte("0101"), "101"))
	assert.True(t, record.ValuesEqual("zip_code", "007", int64(7)))
	assert.True(t, record.ValuesEqual("meta", `[1, 2]`, `[1,2]`))
}

func TestNormalize_Binary(t *testing.T) {
	raw := []byte{0xff, 0x00, 0xfe}
	assert.Equal(t, "/wD+", record.Normalize("payload", raw))
	assert.Equal(t, "hello", record.Normalize("payload", []byte("hello")))
	assert.True(t, record.ValuesEqual("payload", raw, []byte{0xff, 0x00, 0xfe}))
	assert.False(t, record.ValuesEqual("payload", raw, []byte{0xff, 0x00, 0xfd}))
}

func TestDiff(t *testing.T) {
	want := record.Row{"id": "1", "name": "alice", "amount": 10, "created_at": "2024-05-01T00:00:00Z"}
	got := record.Row{"id": "1", "name": "alicia", "amount": int64(10), "created_at": "2024-05-01T00:00:05Z"}

	diff := record.Diff(want, got)
	require.Len(t, diff, 2)
	assert.Equal(t, "created_at", diff[0].Field)
	assert.True(t, diff[0].Timestamp)
	assert.Equal(t, "name", diff[1].Field)
	assert.False(t, diff[1].Timestamp)

	assert.Empty(t, record.Diff(want, want))
}
