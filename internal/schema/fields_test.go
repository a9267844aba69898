package schema_test

import (
	"testing"

	"db-shift/internal/schema"

	"github.com/stretchr/testify/assert"
)

func TestDecodeFieldName(t *testing.T) {
	assert.Equal(t, "registered date", schema.DecodeFieldName("reg_dt"))
	assert.Equal(t, "user name", schema.DecodeFieldName("usr_nm"))
	assert.Equal(t, "invoice amount", schema.DecodeFieldName("INVOICE_AMT"))
}

func TestIsTimestampField(t *testing.T) {
	for _, name := range []string{"created_at", "updated_at", "reg_dt", "event_time", "published_on", "due_date", "created", "timestamp", "mod_ts"} {
		assert.True(t, schema.IsTimestampField(name), name)
	}
	for _, name := range []string{"id", "name", "at", "amount", "date_format_id", "status"} {
		assert.False(t, schema.IsTimestampField(name), name)
	}
}

func TestIsUUID(t *testing.T) {
	assert.True(t, schema.IsUUID("4f9c2d0e-8a1b-4c3d-9e2f-1a2b3c4d5e6f"))
	assert.False(t, schema.IsUUID("4f9c2d0e8a1b4c3d9e2f1a2b3c4d5e6f"))
	assert.False(t, schema.IsUUID("not-a-uuid-at-all-but-36-characters!"))
}
