package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty addr", mutate: func(c *Config) { c.Addr = "" }, wantErr: "addr is required"},
		{name: "relative path", mutate: func(c *Config) { c.Path = "ws" }, wantErr: "must start with /"},
		{name: "zero buffer", mutate: func(c *Config) { c.SendBuffer = 0 }, wantErr: "send buffer"},
		{name: "negative read limit", mutate: func(c *Config) { c.ReadLimit = -1 }, wantErr: "read limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_OriginAllowed(t *testing.T) {
	open := DefaultConfig()
	assert.True(t, open.originAllowed("http://anything"))

	restricted := DefaultConfig()
	restricted.AllowedOrigins = []string{"http://good.example"}
	assert.True(t, restricted.originAllowed("http://GOOD.example"))
	assert.True(t, restricted.originAllowed(""), "non-browser clients send no Origin")
	assert.False(t, restricted.originAllowed("http://evil.example"))

	wildcard := DefaultConfig()
	wildcard.AllowedOrigins = []string{"*"}
	assert.True(t, wildcard.originAllowed("http://evil.example"))
}

func TestInitLogger(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	assert.Error(t, InitLogger("", "loud"))
	assert.NoError(t, InitLogger("", "debug"))
	assert.NoError(t, InitLogger(t.TempDir()+"/relay.log", "info"))
	Log.Info("written to file")
	SyncLogger()
}
