package utils

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromString(t *testing.T) {
	assert.Equal(t, "", FromString(pgtype.Text{}))
	assert.Equal(t, "z1", FromString(pgtype.Text{String: "z1", Valid: true}))
}

func TestFromTimestamptz(t *testing.T) {
	assert.Nil(t, FromTimestamptz(pgtype.Timestamptz{}))

	berlin := time.FixedZone("CET", 3600)
	got := FromTimestamptz(pgtype.Timestamptz{Time: time.Date(2024, 4, 2, 10, 0, 0, 0, berlin), Valid: true})
	require.NotNil(t, got)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC), *got)
}
