package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("DATABASE_DRIVER", "")

	cfg, err := Load()
	req.NoError(err)
	req.Equal(DriverSQLite, cfg.Database.Driver)
	req.Equal(8080, cfg.Server.Port)
	req.Equal(54*time.Second, cfg.WebSocket.PingInterval)
	req.False(cfg.Redis.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("DATABASE_DRIVER", "BADGER")
	t.Setenv("DATABASE_BADGER_IN_MEMORY", "true")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("WS_SEND_BUFFER", "8")

	cfg, err := Load()
	req.NoError(err)
	req.Equal(DriverBadger, cfg.Database.Driver)
	req.True(cfg.Database.BadgerInMemory)
	req.Equal(9090, cfg.Server.Port)
	req.Equal([]string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	req.Equal(8, cfg.WebSocket.SendBuffer)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":     {"DATABASE_DRIVER": "oracle"},
		"postgres needs dsn": {"DATABASE_DRIVER": "postgres", "DATABASE_DSN": ""},
		"ping after pong":    {"WS_PING_INTERVAL": "2m", "WS_PONG_WAIT": "1m"},
		"limit needs redis":  {"RATE_LIMIT_ENABLED": "true", "REDIS_ENABLED": "false"},
		"zero ping":          {"WS_PING_INTERVAL": "0s"},
		"negative ping":      {"WS_PING_INTERVAL": "-5s"},
		"zero pong":          {"WS_PONG_WAIT": "0s", "WS_PING_INTERVAL": "-1s"},
		"zero write wait":    {"WS_WRITE_WAIT": "0s"},
		"negative buffer":    {"WS_SEND_BUFFER": "-1"},
		"zero buffer":        {"WS_SEND_BUFFER": "0"},
		"zero message size":  {"WS_MAX_MESSAGE_SIZE": "0"},
		"zero limit window":  {"RATE_LIMIT_ENABLED": "true", "REDIS_ENABLED": "true", "RATE_LIMIT_WINDOW": "0s"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
