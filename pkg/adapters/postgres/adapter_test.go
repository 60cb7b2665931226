package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/leapstack-labs/leapdesk/pkg/adapter"
	"github.com/leapstack-labs/leapdesk/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		host     string
		port     uint16
		database string
		user     string
	}{
		{
			name:     "url form",
			input:    "postgresql://u:p@host:5433/db",
			host:     "host",
			port:     5433,
			database: "db",
			user:     "u",
		},
		{
			name:     "postgres scheme",
			input:    "postgres://admin@db.example.com/prod?sslmode=disable",
			host:     "db.example.com",
			port:     5432,
			database: "prod",
			user:     "admin",
		},
		{
			name:     "keyword form",
			input:    "host=localhost port=5432 dbname=mydb user=me sslmode=disable",
			host:     "localhost",
			port:     5432,
			database: "mydb",
			user:     "me",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := New(nil).ParseConfig(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.host, cfg.Host)
			assert.Equal(t, tt.port, cfg.Port)
			assert.Equal(t, tt.database, cfg.Database)
			assert.Equal(t, tt.user, cfg.User)
			assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
		})
	}
}

func TestParseConfig_KeepsExplicitTimeout(t *testing.T) {
	cfg, err := New(nil).ParseConfig("postgresql://u@h/db?connect_timeout=3")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
}

func TestParseConfig_Malformed(t *testing.T) {
	_, err := New(nil).ParseConfig("postgresql://u:p@host:notaport/db")

	var malformed *core.MalformedConnectionStringError
	require.ErrorAs(t, err, &malformed)
	assert.NotContains(t, err.Error(), "u:p")
}

func TestCheckConnectivity_Unreachable(t *testing.T) {
	c := New(nil)
	c.ConnectTimeout = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.False(t, c.CheckConnectivity(ctx, "postgresql://u:p@127.0.0.1:1/db?sslmode=disable"))
	assert.False(t, c.CheckConnectivity(ctx, "postgresql://u:p@host:bad/db"))
}

func TestRegistered(t *testing.T) {
	for _, scheme := range Schemes {
		assert.True(t, adapter.IsRegistered(scheme), scheme)
	}
}
