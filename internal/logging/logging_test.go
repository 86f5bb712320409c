package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_FileOutputJSON(t *testing.T) {
	logger := logrus.New()
	path := filepath.Join(t.TempDir(), "depsentry.log")
	c, err := Init(logger, Options{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	logger.WithField("analyzer", "hash").Debug("hello")
	require.NoError(t, c.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `"analyzer":"hash"`), string(b))
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestInit_DefaultsAndInvalidLevel(t *testing.T) {
	logger := logrus.New()
	_, err := Init(logger, Options{})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	_, err = Init(logger, Options{Level: "loud"})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
}

func TestInit_UnwritableFile(t *testing.T) {
	logger := logrus.New()
	_, err := Init(logger, Options{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
	assert.Equal(t, os.Stderr, logger.Out)
}
