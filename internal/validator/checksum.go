package validator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"

	"db-shift/internal/dialect"
	"db-shift/internal/record"
)

// TableChecksum hashes every row of a table ordered by orderBy.
func TableChecksum(ctx context.Context, c dialect.Conn, d dialect.Dialect, table string, orderBy []string) (string, error) {
	rows, err := c.QueryContext(ctx, dialect.OrderedSelectQuery(d, table, orderBy))
	if err != nil {
		return "", err
	}
	defer rows.Close()
	all, err := dialect.ScanMaps(rows)
	if err != nil {
		return "", err
	}
	return ChecksumRows(all)
}

// ChecksumRows returns the hex SHA-256 of the rows' JSON encodings, one per
// line, in the given order. Values are normalised first and object keys are
// sorted, so drivers that return the same data in different Go types agree.
func ChecksumRows(rows []record.Row) (string, error) {
	h := sha256.New()
	for i, row := range rows {
		if err := writeRow(h, row); err != nil {
			return "", fmt.Errorf("row %d: %w", i, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeRow(h hash.Hash, row record.Row) error {
	// encoding/json writes map keys in sorted order.
	out, err := json.Marshal(record.NormalizeRow(row))
	if err != nil {
		return err
	}
	h.Write(out)
	h.Write([]byte{'\n'})
	return nil
}
