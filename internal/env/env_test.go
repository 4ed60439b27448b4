package env

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Host     string        `env:"TEST_HOST"`
	Port     int           `env:"TEST_PORT"`
	Enabled  bool          `env:"TEST_ENABLED"`
	Timeout  time.Duration `env:"TEST_TIMEOUT"`
	Origins  []string      `env:"TEST_ORIGINS"`
	Untagged string
	hidden   string `env:"TEST_HIDDEN"`
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_HOST", "example.com")
	t.Setenv("TEST_PORT", "9090")
	t.Setenv("TEST_ENABLED", "true")
	t.Setenv("TEST_TIMEOUT", "1m30s")
	t.Setenv("TEST_ORIGINS", " https://a.example.com ,,https://b.example.com")
	t.Setenv("TEST_HIDDEN", "ignored")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "example.com", cfg.Host)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Origins)
	assert.Empty(t, cfg.Untagged)
	assert.Empty(t, cfg.hidden)
}

func TestLoad_UnsetLeavesZeroValues(t *testing.T) {
	cfg := testConfig{Host: "preset"}
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "preset", cfg.Host)
	assert.Zero(t, cfg.Port)
	assert.Nil(t, cfg.Origins)
}

func TestLoad_EmptyStringRespected(t *testing.T) {
	t.Setenv("TEST_HOST", "")

	cfg := testConfig{Host: "preset"}
	require.NoError(t, Load(&cfg))
	assert.Empty(t, cfg.Host)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
		value  string
	}{
		{"int", "TEST_PORT", "eighty"},
		{"empty int", "TEST_PORT", ""},
		{"bool", "TEST_ENABLED", "maybe"},
		{"duration", "TEST_TIMEOUT", "5 minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)

			var cfg testConfig
			err := Load(&cfg)

			var invalid ErrInvalidValue
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.envVar, invalid.EnvVar)
			assert.Equal(t, tt.value, invalid.Value)
		})
	}
}

func TestLoad_UnsupportedType(t *testing.T) {
	type cfg struct {
		Ratio float64 `env:"TEST_RATIO"`
		Ports []int   `env:"TEST_PORTS"`
	}

	t.Run("float", func(t *testing.T) {
		t.Setenv("TEST_RATIO", "0.5")
		var unsupported ErrUnsupportedType
		require.ErrorAs(t, Load(&cfg{}), &unsupported)
		assert.Equal(t, "float64", unsupported.Kind)
	})

	t.Run("int slice", func(t *testing.T) {
		t.Setenv("TEST_PORTS", "1,2")
		var unsupported ErrUnsupportedType
		require.ErrorAs(t, Load(&cfg{}), &unsupported)
		assert.Equal(t, "[]int", unsupported.Kind)
	})
}

func TestLoad_NotStructPointer(t *testing.T) {
	var notPtr testConfig
	var wrong ErrNotStructPointer
	require.ErrorAs(t, Load(notPtr), &wrong)

	s := "x"
	require.ErrorAs(t, Load(&s), &wrong)
}

type validatedSection struct {
	Port int `env:"TEST_SECTION_PORT"`
}

var errBadPort = errors.New("port out of range")

func (v validatedSection) Validate() error {
	if v.Port < 0 || v.Port > 65535 {
		return errBadPort
	}
	return nil
}

type nestedConfig struct {
	Section validatedSection
	Started time.Time
}

func TestLoad_NestedValidation(t *testing.T) {
	t.Setenv("TEST_SECTION_PORT", "8080")
	var ok nestedConfig
	require.NoError(t, Load(&ok))
	assert.Equal(t, 8080, ok.Section.Port)

	t.Setenv("TEST_SECTION_PORT", "70000")
	var bad nestedConfig
	assert.ErrorIs(t, Load(&bad), errBadPort)
}

type rootValidated struct {
	Name string `env:"TEST_ROOT_NAME"`
}

func (r *rootValidated) Validate() error {
	if r.Name == "" {
		return errors.New("name required")
	}
	return nil
}

func TestLoad_RootValidation(t *testing.T) {
	assert.Error(t, Load(&rootValidated{}))

	t.Setenv("TEST_ROOT_NAME", "taskflow")
	assert.NoError(t, Load(&rootValidated{}))
}
