package modules_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/craftflow/internal/modules"
	"github.com/energizer-project/craftflow/internal/modules/moduletest"
)

type counter struct {
	name  string
	calls int
	err   error
}

func (c *counter) Name() string { return c.name }

func (c *counter) Register(modules.Host) error {
	c.calls++
	return c.err
}

type other struct{ counter }

func TestRegistryAddAndGet(t *testing.T) {
	host := moduletest.NewHost(t, nil)
	r := modules.NewRegistry()

	first := &counter{name: "first"}
	require.NoError(t, r.Add(host, first))
	require.NoError(t, r.Add(host, &other{counter{name: "second"}}))
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, []string{"first", "second"}, r.Names())

	got, ok := modules.Get[*counter](r)
	require.True(t, ok)
	assert.Same(t, first, got)

	err := r.Add(host, &counter{name: "again"})
	assert.ErrorContains(t, err, "already registered")
}

func TestRegistryAddFailure(t *testing.T) {
	r := modules.NewRegistry()
	boom := errors.New("boom")
	err := r.Add(moduletest.NewHost(t, nil), &counter{name: "broken", err: boom})
	assert.ErrorIs(t, err, boom)

	_, ok := modules.Get[*counter](r)
	assert.False(t, ok)
	assert.Empty(t, r.Names())
}
