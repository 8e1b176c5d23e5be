package db

import (
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.Len(t, files, 2)

	var all strings.Builder
	for _, name := range files {
		body, err := fs.ReadFile(migrations, name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", name)
		assert.Contains(t, string(body), "-- +goose Down", name)
		all.Write(body)
	}

	for _, table := range []string{
		"categorias", "contas", "cartoes", "transacoes", "transacoes_fixas", "patrimonio", "mapping_templates",
	} {
		assert.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
	assert.Contains(t, all.String(), "UNIQUE (user_id, fingerprint)")
}

func TestNew_InvalidDSN(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := New(Config{DSN: "postgres://%zz"}, logger)
	assert.ErrorContains(t, err, "failed to parse database config")
}
