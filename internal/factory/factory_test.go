package factory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface{ Greet() string }

type english struct{}

func (english) Greet() string { return "hello" }

func TestBuild(t *testing.T) {
	g, err := Build(func(string) (greeter, error) { return english{}, nil }, "env", "greeter")
	require.NoError(t, err)
	assert.Equal(t, "hello", g.Greet())

	_, err = Build(func(string) (greeter, error) { return nil, errors.New("bad config") }, "env", "greeter")
	assert.EqualError(t, err, "bad config")

	_, err = Build(func(string) (greeter, error) { return nil, nil }, "env", "greeter")
	assert.EqualError(t, err, "factory returned no greeter")

	g, err = Build(func(string) (greeter, error) { panic("boom") }, "env", "greeter")
	assert.EqualError(t, err, "factory panicked: boom")
	assert.Nil(t, g)
}
