package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	var stderr bytes.Buffer
	cfg, err := Parse("nntpsink", nil, &stderr)
	require.NoError(t, err)
	assert.True(t, cfg.DoIhave)
	assert.True(t, cfg.DoStreaming)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "119", cfg.Port)
	assert.Equal(t, 1, cfg.Threads)
	assert.False(t, cfg.Debug)
}

func TestParse_IhaveOnly(t *testing.T) {
	var stderr bytes.Buffer
	cfg, err := Parse("nntpsink", []string{"-I"}, &stderr)
	require.NoError(t, err)
	assert.True(t, cfg.DoIhave)
	assert.False(t, cfg.DoStreaming)
}

func TestParse_StreamingOnly(t *testing.T) {
	var stderr bytes.Buffer
	cfg, err := Parse("nntpsink", []string{"-S"}, &stderr)
	require.NoError(t, err)
	assert.False(t, cfg.DoIhave)
	assert.True(t, cfg.DoStreaming)
}

func TestParse_BothIhaveAndStreaming_Fatal(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Parse("nntpsink", []string{"-I", "-S"}, &stderr)
	require.Error(t, err)
}

func TestParse_ZeroThreads_Fatal(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Parse("nntpsink", []string{"-t", "0"}, &stderr)
	require.Error(t, err)
}

func TestParse_PositionalArgument_Fatal(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Parse("nntpsink", []string{"extra-arg"}, &stderr)
	require.Error(t, err)
}

func TestParse_Version(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Parse("nntpsink", []string{"-V"}, &stderr)
	assert.ErrorIs(t, err, ErrVersionRequested)
}

func TestParse_Help(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Parse("nntpsink", []string{"-h"}, &stderr)
	assert.ErrorIs(t, err, ErrHelpRequested)
	assert.Contains(t, stderr.String(), "usage:")
}

func TestParse_CustomHostAndPort(t *testing.T) {
	var stderr bytes.Buffer
	cfg, err := Parse("nntpsink", []string{"-l", "0.0.0.0", "-p", "1190", "-t", "4"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "1190", cfg.Port)
	assert.Equal(t, 4, cfg.Threads)
}
