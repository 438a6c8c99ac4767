package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okabre/sawlink/internal/config"
)

func TestSenderValidate(t *testing.T) {
	valid := config.Sender{Target: "127.0.0.1:9000", Timeout: 2 * time.Second, MaxRetries: 5}
	require.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		mutate func(*config.Sender)
	}{
		{"missing target", func(c *config.Sender) { c.Target = "" }},
		{"zero timeout", func(c *config.Sender) { c.Timeout = 0 }},
		{"negative timeout", func(c *config.Sender) { c.Timeout = -time.Second }},
		{"zero retries", func(c *config.Sender) { c.MaxRetries = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestRelayValidate(t *testing.T) {
	valid := config.Relay{
		Listen: "127.0.0.1:9100",
		Target: "127.0.0.1:9000",
		Near:   config.PolicySpec{Drop: 30, Delay: 50, DelayMin: 100, DelayMax: 500},
	}
	require.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		mutate func(*config.Relay)
	}{
		{"missing listen", func(c *config.Relay) { c.Listen = "" }},
		{"missing target", func(c *config.Relay) { c.Target = "" }},
		{"drop above 100", func(c *config.Relay) { c.Near.Drop = 101 }},
		{"negative drop", func(c *config.Relay) { c.Far.Drop = -1 }},
		{"delay above 100", func(c *config.Relay) { c.Far.Delay = 200 }},
		{"negative delay bound", func(c *config.Relay) { c.Near.DelayMin = -5 }},
		{"min above max", func(c *config.Relay) { c.Near.DelayMin = 600 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestPolicyConversion(t *testing.T) {
	spec := config.PolicySpec{Drop: 10, Delay: 40, DelayMin: 100, DelayMax: 500}
	p := spec.Policy()

	assert.Equal(t, 10, p.DropPct)
	assert.Equal(t, 40, p.DelayPct)
	assert.Equal(t, 100*time.Millisecond, p.DelayMin)
	assert.Equal(t, 500*time.Millisecond, p.DelayMax)
}

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.lua")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadProfile(t *testing.T) {
	path := writeProfile(t, `
return {
    near = { drop = 30, delay = 50, delay_min = 100, delay_max = 500 },
    far  = { drop = 10 },
}
`)

	p, err := config.LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, config.PolicySpec{Drop: 30, Delay: 50, DelayMin: 100, DelayMax: 500}, p.Near)
	assert.Equal(t, config.PolicySpec{Drop: 10}, p.Far)
}

func TestLoadProfileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadProfile(filepath.Join(t.TempDir(), "absent.lua"))
		assert.Error(t, err)
	})

	t.Run("not a table", func(t *testing.T) {
		_, err := config.LoadProfile(writeProfile(t, `return 42`))
		assert.Error(t, err)
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := config.LoadProfile(writeProfile(t, `return {`))
		assert.Error(t, err)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := config.LoadProfile(writeProfile(t, `return { near = { drop = 150 } }`))
		assert.Error(t, err)
	})
}
