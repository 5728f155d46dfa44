package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(cmd string) *Context {
	return &Context{
		Ctx:     context.Background(),
		Message: &wire.Message{Command: cmd},
		Store:   store.New(),
		Reply:   func(string) {},
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	d := New()
	ctx := d.Dispatch(newContext("FROB"))
	assert.Equal(t, NotHandled, ctx.Outcome)
}

func TestDispatchRunsHandler(t *testing.T) {
	d := New()
	var ran bool
	d.Register("PING", func(c *Context) error {
		ran = true
		return nil
	})

	ctx := d.Dispatch(newContext("PING"))
	assert.True(t, ran)
	assert.Equal(t, Handled, ctx.Outcome)
	assert.NoError(t, ctx.Err)
}

func TestDispatchHandlerError(t *testing.T) {
	d := New()
	d.Register("JOIN", func(c *Context) error {
		return errors.New("boom")
	})

	ctx := d.Dispatch(newContext("JOIN"))
	require.Error(t, ctx.Err)
	assert.Equal(t, Handled, ctx.Outcome)
}

func TestPreHookCanReject(t *testing.T) {
	d := New()
	d.RegisterPreHook(func(c *Context) error {
		return errors.New("banned")
	})
	var ran bool
	d.Register("PRIVMSG", func(c *Context) error {
		ran = true
		return nil
	})

	ctx := d.Dispatch(newContext("PRIVMSG"))
	assert.False(t, ran)
	assert.Equal(t, Rejected, ctx.Outcome)
}

func TestPostHookAlwaysRuns(t *testing.T) {
	d := New()
	var postRan bool
	d.RegisterPostHook(func(c *Context) error {
		postRan = true
		return nil
	})

	d.Dispatch(newContext("ANYTHING"))
	assert.True(t, postRan)
}
