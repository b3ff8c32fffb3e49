package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatroom/internal/store"
)

// setEnv pins every variable NewConfigFromEnv reads so the host environment
// cannot leak into the test.
func setEnv(t *testing.T, overrides map[string]string) {
	t.Helper()
	vars := map[string]string{
		"SERVER_PORT":                ":8080",
		"ALLOWED_ORIGINS":            "http://localhost:8080",
		"MAX_MESSAGE_SIZE":           "512",
		"SEND_BUFFER_SIZE":           "256",
		"RATE_LIMIT_BURST":           "5",
		"RATE_LIMIT_REFILL_INTERVAL": "1s",
		"TYPING_TIMEOUT":             "2s",
		"STORE_DRIVER":               "badger",
		"BADGER_FILEPATH":            "./data/chat",
		"DATABASE_URL":               "",
		"LOG_LEVEL":                  "INFO",
		"SHUTDOWN_TIMEOUT":           "10s",
	}
	for k, v := range overrides {
		vars[k] = v
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestNewConfig_Defaults_Are_Valid(t *testing.T) {
	req := require.New(t)
	cfg := NewConfig()

	req.NoError(cfg.Validate())
	req.Equal(":8080", cfg.Port)
	req.Equal([]string{"http://localhost:8080"}, cfg.AllowedOrigins)
	req.Equal(2*time.Second, cfg.TypingTimeout)
	req.Equal(store.DriverBadger, cfg.StoreDriver)
}

func TestNewConfigFromEnv_Defaults(t *testing.T) {
	req := require.New(t)
	setEnv(t, nil)

	cfg, err := NewConfigFromEnv()
	req.NoError(err)
	req.Equal(*NewConfig(), *cfg)
}

func TestNewConfigFromEnv_Overrides(t *testing.T) {
	req := require.New(t)
	setEnv(t, map[string]string{
		"SERVER_PORT":                ":9090",
		"ALLOWED_ORIGINS":            "http://a.example, https://b.example ",
		"RATE_LIMIT_BURST":           "10",
		"RATE_LIMIT_REFILL_INTERVAL": "250ms",
		"TYPING_TIMEOUT":             "500ms",
		"STORE_DRIVER":               "Postgres",
		"DATABASE_URL":               "postgres://chat@localhost/chat",
		"LOG_LEVEL":                  "debug",
	})

	cfg, err := NewConfigFromEnv()
	req.NoError(err)
	req.Equal(":9090", cfg.Port)
	req.Equal([]string{"http://a.example", "https://b.example"}, cfg.AllowedOrigins)
	req.Equal(RateLimitConfig{Burst: 10, RefillInterval: 250 * time.Millisecond}, cfg.RateLimit)
	req.Equal(500*time.Millisecond, cfg.TypingTimeout)
	req.Equal(store.DriverPostgres, cfg.StoreDriver)
	req.Equal("DEBUG", cfg.LogLevel)

	opts := cfg.StoreOptions()
	req.Equal(store.DriverPostgres, opts.Driver)
	req.Equal("postgres://chat@localhost/chat", opts.DatabaseURL)
}

func TestNewConfigFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "mongo"}},
		{name: "postgres without url", env: map[string]string{"STORE_DRIVER": "postgres"}},
		{name: "unknown log level", env: map[string]string{"LOG_LEVEL": "chatty"}},
		{name: "bad duration", env: map[string]string{"TYPING_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)

			_, err := NewConfigFromEnv()
			require.Error(t, err)
		})
	}
}

func TestSanitizeConfig_Fills_Defaults(t *testing.T) {
	req := require.New(t)
	defaults := defaultConfig()

	cfg := sanitizeConfig(Config{
		MaxMessageSize: -1,
		RateLimit:      RateLimitConfig{Burst: 0, RefillInterval: -time.Second},
		LogLevel:       " warn ",
	})

	req.Equal(defaults.Port, cfg.Port)
	req.Equal(defaults.MaxMessageSize, cfg.MaxMessageSize)
	req.Equal(defaults.SendBufferSize, cfg.SendBufferSize)
	req.Equal(defaults.RateLimit, cfg.RateLimit)
	req.Equal(defaults.TypingTimeout, cfg.TypingTimeout)
	req.Equal(defaults.StoreDriver, cfg.StoreDriver)
	req.Equal("WARN", cfg.LogLevel)
}

func TestSanitizeConfig_Copies_Origins(t *testing.T) {
	origins := []string{"http://a.example"}

	cfg := sanitizeConfig(Config{AllowedOrigins: origins})
	cfg.AllowedOrigins[0] = "http://changed.example"

	require.Equal(t, "http://a.example", origins[0])
}
