//go:build integration

package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/bomsearch/internal/testutil"
)

func TestMigrateUpDown(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	version, err := MigrateUp(pc.ConnectionString(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	version, err = MigrateUp(pc.ConnectionString(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	pool, err := NewPool(ctx, Config{URL: pc.ConnectionString(), MaxConns: 4})
	require.NoError(t, err)
	defer pool.Close()

	var exists bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT to_regclass('public.search_logs') IS NOT NULL`).Scan(&exists))
	assert.True(t, exists)

	version, err = MigrateDown(pc.ConnectionString(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, pool.QueryRow(ctx, `SELECT to_regclass('public.search_logs') IS NOT NULL`).Scan(&exists))
	assert.False(t, exists)

	_, err = MigrateDown(pc.ConnectionString(), 0, nil)
	assert.Error(t, err)
}

func TestNewPool_InvalidURL(t *testing.T) {
	_, err := NewPool(context.Background(), Config{URL: "://not a url"})
	assert.Error(t, err)
}
