package camera

import "testing"

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "hd is valid", mutate: func(c *Config) { *c = HDConfig() }},
		{name: "negative device", mutate: func(c *Config) { c.Device = -1 }, wantErr: true},
		{name: "zero width", mutate: func(c *Config) { c.Width = 0 }, wantErr: true},
		{name: "quality too high", mutate: func(c *Config) { c.Quality = 101 }, wantErr: true},
		{name: "quality zero", mutate: func(c *Config) { c.Quality = 0 }, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate: got err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestManager_ClaimIsExclusive(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	// Simulate a held claim without touching hardware.
	m.claimed = true

	if _, err := m.Acquire(); err != ErrBusy {
		t.Errorf("second acquire: got %v, want ErrBusy", err)
	}

	m.releaseClaim()
	if m.Claimed() {
		t.Error("claim should be released")
	}
}

func TestNewManager_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quality = 0
	if _, err := NewManager(cfg); err == nil {
		t.Error("expected validation error")
	}
}
