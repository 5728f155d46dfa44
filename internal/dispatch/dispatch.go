// Package dispatch routes a parsed command to its handler with pre/post
// extension phases, using internal/hooks for the phase registries
// (spec.md §4.5). It is the generalized form of the teacher's
// event-name-keyed hook map (irc/server/server.go Hook/HookParams/
// RunHooks) into a typed, per-command table plus cross-cutting phases.
package dispatch

import (
	"context"
	"fmt"

	"github.com/presbrey/ircd/internal/hooks"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

// Outcome reports what happened to a dispatched command.
type Outcome int

const (
	// NotHandled means no handler is registered for this command.
	NotHandled Outcome = iota
	// Handled means a handler ran and post-hooks should still run.
	Handled
	// HandledStop means a handler ran and the command should not be
	// passed to any further processing (e.g. an extension intercepted
	// it entirely).
	HandledStop
	// Rejected means a pre-hook vetoed the command before any handler ran.
	Rejected
)

// Context is the per-invocation state passed through pre-hooks, the
// handler, and post-hooks — the generalized analogue of the teacher's
// HookParams.
type Context struct {
	Ctx     context.Context
	Message *wire.Message
	UserID  store.UserID
	Store   *store.Store

	// Reply is how a handler sends numeric/text responses back to the
	// originating connection; connio supplies the concrete sink.
	Reply func(line string)

	// FromServicesLink is true when this command arrived over a peer link
	// registered and marked "services" (spec.md §4.10): services commands
	// (SVSNICK/SVSMODE/SVSJOIN/SVSPART/SETHOST/SVS2MODE) bypass the normal
	// operator-privilege check but are only honored from such a link.
	FromServicesLink bool

	Outcome Outcome
	Err     error
}

// Handler processes one command after pre-hooks have approved it.
type Handler func(*Context) error

// Dispatcher holds the command table and the two cross-cutting hook
// phases (pre runs before the handler and can veto; post runs after,
// regardless of handler success, for logging/metrics/broadcast side
// effects).
type Dispatcher struct {
	handlers map[string]Handler
	pre      *hooks.Registry[*Context]
	post     *hooks.Registry[*Context]
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		pre:      hooks.NewRegistry[*Context](),
		post:     hooks.NewRegistry[*Context](),
	}
}

// Register binds a Handler to a command name (case-insensitive at
// lookup time; store it upper-cased since wire.ParseLine already
// upper-cases Message.Command).
func (d *Dispatcher) Register(command string, h Handler) {
	d.handlers[command] = h
}

// RegisterPreHook adds a hook run before every command's handler. A
// non-nil error sets Outcome to Rejected and the handler is skipped.
func (d *Dispatcher) RegisterPreHook(h hooks.Hook[*Context]) {
	d.pre.Register(h)
}

// RegisterPostHook adds a hook run after every command's handler,
// regardless of its outcome — used for audit logging, metrics, and
// broadcast-engine draining triggers.
func (d *Dispatcher) RegisterPostHook(h hooks.Hook[*Context]) {
	d.post.Register(h)
}

// Dispatch routes one message through pre-hooks, the registered handler
// (if any), and post-hooks, returning the resulting Context.
func (d *Dispatcher) Dispatch(ctx *Context) *Context {
	if errs := d.pre.RunAll(ctx); len(errs) > 0 {
		ctx.Outcome = Rejected
		for _, err := range errs {
			ctx.Err = err
			break
		}
		d.post.RunAll(ctx)
		return ctx
	}

	handler, ok := d.handlers[ctx.Message.Command]
	if !ok {
		ctx.Outcome = NotHandled
		d.post.RunAll(ctx)
		return ctx
	}

	if err := handler(ctx); err != nil {
		ctx.Err = err
	}
	if ctx.Outcome == NotHandled {
		ctx.Outcome = Handled
	}

	d.post.RunAll(ctx)
	return ctx
}

// ErrUnknownCommand builds an error naming a command that has no
// registered handler.
func ErrUnknownCommand(command string) error {
	return fmt.Errorf("dispatch: unknown command %q", command)
}
