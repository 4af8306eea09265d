package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// NextCode allocates the next order code for a (prefix, year) namespace and
// formats it as <PREFIX>-<year>-<4-digit-seq>.
//
// It must be called inside the transaction that inserts the order. The
// upsert-increment is atomic: the ON CONFLICT row update takes a row lock, so
// two concurrent transactions serialize on the counter and can never observe
// the same last_number.
func NextCode(ctx context.Context, tx pgx.Tx, prefix string, year int) (string, error) {
	var lastNumber int64
	err := tx.QueryRow(ctx, `
		INSERT INTO code_sequences (prefix, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, year)
		DO UPDATE SET last_number = code_sequences.last_number + 1
		RETURNING last_number
	`, prefix, year).Scan(&lastNumber)
	if err != nil {
		return "", fmt.Errorf("failed to generate sequence number for %s-%d: %w", prefix, year, err)
	}

	return FormatCode(prefix, year, lastNumber), nil
}

// FormatCode renders a code from its parts: MN-2025-0001.
func FormatCode(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}
