package database

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-reservation/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{User: "app", Pass: "p@ss", Host: "db", Port: "3306", Name: "reservations"})

	mc, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", mc.User)
	assert.Equal(t, "p@ss", mc.Passwd)
	assert.Equal(t, "db:3306", mc.Addr)
	assert.Equal(t, "reservations", mc.DBName)
	assert.True(t, mc.ParseTime)
	assert.Equal(t, "UTC", mc.Loc.String())
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestPoolConfig(t *testing.T) {
	pc, err := PoolConfig("postgres://app:secret@db:5432/seats?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, int32(pgMaxConns), pc.MaxConns)
	assert.Equal(t, int32(pgMinConns), pc.MinConns)
	assert.Equal(t, "db", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5432), pc.ConnConfig.Port)
	assert.Equal(t, "seats", pc.ConnConfig.Database)

	_, err = PoolConfig("postgres://%zz")
	assert.Error(t, err)
}
