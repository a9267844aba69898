package validator_test

import (
	"testing"

	"db-shift/internal/record"
	"db-shift/internal/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumRows_DriverTypesAgree(t *testing.T) {
	a := []record.Row{{"id": "1", "n": int32(5), "note": []byte("x"), "created_at": "2024-05-01 10:00:00"}}
	b := []record.Row{{"id": []byte("1"), "n": 5.0, "note": "x", "created_at": "2024-05-01T10:00:00Z"}}

	sa, err := validator.ChecksumRows(a)
	require.NoError(t, err)
	sb, err := validator.ChecksumRows(b)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
	assert.Len(t, sa, 64)
}

func TestChecksumRows_OrderAndContentMatter(t *testing.T) {
	r1 := record.Row{"id": "1"}
	r2 := record.Row{"id": "2"}

	forward, err := validator.ChecksumRows([]record.Row{r1, r2})
	require.NoError(t, err)
	backward, err := validator.ChecksumRows([]record.Row{r2, r1})
	require.NoError(t, err)
	assert.NotEqual(t, forward, backward)

	fewer, err := validator.ChecksumRows([]record.Row{r1})
	require.NoError(t, err)
	assert.NotEqual(t, forward, fewer)
}

func TestScore(t *testing.T) {
	assert.Equal(t, 100.0, validator.Score(0, 0, nil, nil))
	assert.Equal(t, 80.0, validator.Score(8, 10, nil, nil))
	// one of four tables invalid: 75 before penalties
	assert.Equal(t, 75.0-validator.CriticalErrorPenalty,
		validator.Score(3, 4, nil, []validator.ValidationError{{Critical: true}}))

	warnings := []validator.ValidationWarning{{}, {}}
	errs := []validator.ValidationError{{Critical: true}, {}}
	assert.Equal(t, 100.0-4-15-5, validator.Score(10, 10, warnings, errs))

	many := make([]validator.ValidationError, 10)
	for i := range many {
		many[i].Critical = true
	}
	assert.Equal(t, 0.0, validator.Score(10, 10, nil, many))
	assert.Equal(t, 100.0, validator.Clamp(140))
}
