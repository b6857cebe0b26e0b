package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfbooking/cmd/internal/config"
	"selfbooking/cmd/internal/domain/entity"
)

func TestInit_MigratesSchema(t *testing.T) {
	db, err := Init(config.Database{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)

	for _, model := range []any{&entity.User{}, &entity.Booking{}, &entity.BlackoutPeriod{}} {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.True(t, db.Migrator().HasIndex(&entity.Booking{}, "ActiveKey"))
}

func TestInit_UnknownDriver(t *testing.T) {
	_, err := Init(config.Database{Driver: "oracle"})
	assert.Error(t, err)
}

func TestWithParam(t *testing.T) {
	assert.Equal(t, "./database.db?_busy_timeout=5000", withParam("./database.db", "_busy_timeout=5000"))
	assert.Equal(t, "file:x.db?cache=shared&_busy_timeout=5000", withParam("file:x.db?cache=shared", "_busy_timeout=5000"))
	assert.Equal(t, ":memory:", withParam(":memory:", "_busy_timeout=5000"))
}
