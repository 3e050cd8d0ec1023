package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestDialect_Placeholder(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "$1", d.Placeholder(1))
	assert.Equal(t, "$12", d.Placeholder(12))
}

func TestDialect_IsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "wrapped", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: true},
		{name: "foreign key violation", err: &pgconn.PgError{Code: "23503"}},
		{name: "other error", err: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dialect{}.IsUniqueViolation(tt.err))
		})
	}
}

func TestDialect_TimeIsUTC(t *testing.T) {
	local := time.Date(2026, 6, 1, 15, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	got, ok := Dialect{}.Time(local).(time.Time)
	assert.True(t, ok)
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(local))
}
