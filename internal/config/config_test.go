package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHumanAcceptsStdlibForms(t *testing.T) {
	d, err := ParseHuman("10s")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)

	d, err = ParseHuman("2h")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, d)
}

func TestParseHumanAcceptsExtraSuffixes(t *testing.T) {
	d, err := ParseHuman("15min")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)

	d, err = ParseHuman("30sec")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = ParseHuman("45")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, d)
}

func TestParseHumanRejectsGarbage(t *testing.T) {
	_, err := ParseHuman("banana")
	assert.Error(t, err)
}

func TestParseKafkaOption(t *testing.T) {
	k, v, err := ParseKafkaOption("security.protocol=SASL_SSL")
	require.NoError(t, err)
	assert.Equal(t, "security.protocol", k)
	assert.Equal(t, "SASL_SSL", v)

	_, _, err = ParseKafkaOption("no-equals-sign")
	assert.Error(t, err)
}

func TestValidateRequiresBrokersAndSaneTimeouts(t *testing.T) {
	cfg := Config{
		DrawInterval:   time.Minute,
		ScrapeInterval: 10 * time.Second,
		ScrapeTimeout:  time.Second,
	}
	assert.Error(t, cfg.Validate(), "no brokers")

	cfg.Brokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.Validate())

	cfg.ScrapeTimeout = 20 * time.Second
	assert.Error(t, cfg.Validate(), "timeout must be shorter than interval")
}
