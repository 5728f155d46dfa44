// Package ircerr gives handlers a single error type instead of each one
// picking its own numeric by hand, grounded on the taxonomy real ircds
// split their RFC 2812 numerics into (parse/protocol/permission/not-found/
// conflict/rate-limit errors a client should see, versus transport/link/
// internal errors it never does). internal/dispatch's post-hook (wired in
// internal/handlers.Register) uses Numeric to turn a returned *Error into
// the matching reply automatically.
package ircerr

import "github.com/presbrey/ircd/internal/reply"

// Kind classifies why a command failed.
type Kind int

const (
	// Parse means the message's own syntax was malformed — wrong arity,
	// unparsable argument — independent of the user's state or privileges.
	Parse Kind = iota
	// Protocol means the command was well-formed but out of sequence for
	// the connection's current state (e.g. a post-registration PASS).
	Protocol
	// PermissionDenied means the user lacks the privilege (operator
	// status, channel op, services link) the command requires.
	PermissionDenied
	// NotFound means the named nick, channel, or server doesn't exist.
	NotFound
	// Conflict means the requested state already holds (nick in use,
	// already on channel, ban mask already set).
	Conflict
	// RateLimited means a flood or connection-class limit rejected the
	// command; the client isn't told a numeric for this today (no RFC
	// numeric fits), but the kind still lets callers branch on it.
	RateLimited
	// Transport means the failure happened moving bytes, not interpreting
	// them — a write to a dead connection, a closed peer link.
	Transport
	// LinkAuth means a server-to-server handshake or PASS/SERVER exchange
	// failed; never shown to an ordinary client.
	LinkAuth
	// Internal means a failure in this server's own bookkeeping with no
	// useful client-facing explanation.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "parse"
	case Protocol:
		return "protocol"
	case PermissionDenied:
		return "permission_denied"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case RateLimited:
		return "rate_limited"
	case Transport:
		return "transport"
	case LinkAuth:
		return "link_auth"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the error type handlers return for failures that should be
// reported to the client (or logged, for the server-only kinds) by kind
// rather than by a hand-picked numeric at every call site.
type Error struct {
	Kind    Kind
	Command string            // the command that failed, e.g. "KILL"
	Vars    map[string]string // substitutions for the numeric's template
	Cause   error             // wrapped underlying error, if any
}

// New builds an Error of the given kind for command, with vars forwarded
// to reply.Store.Format.
func New(kind Kind, command string, vars map[string]string) *Error {
	return &Error{Kind: kind, Command: command, Vars: vars}
}

// Wrap builds an Error that also carries an underlying cause, used for
// the server-only kinds (Transport/LinkAuth/Internal) that logging cares
// about but no client ever sees.
func Wrap(kind Kind, command string, cause error) *Error {
	return &Error{Kind: kind, Command: command, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return "ircerr: " + e.Kind.String() + ": " + e.Command + ": " + e.Cause.Error()
	}
	return "ircerr: " + e.Kind.String() + ": " + e.Command
}

func (e *Error) Unwrap() error { return e.Cause }

// Numeric maps the error's Kind to an RFC 2812 numeric reply, when one
// applies. The three server-only kinds (Transport, LinkAuth, Internal)
// and RateLimited (no RFC numeric fits a flood rejection) return
// ok=false: callers for those should log rather than reply.
func (e *Error) Numeric() (code int, ok bool) {
	switch e.Kind {
	case Parse:
		return reply.ERR_NEEDMOREPARAMS, true
	case Protocol:
		return reply.ERR_ALREADYREGISTRED, true
	case PermissionDenied:
		return reply.ERR_NOPRIVILEGES, true
	case NotFound:
		return reply.ERR_NOSUCHNICK, true
	case Conflict:
		return reply.ERR_NICKNAMEINUSE, true
	default:
		return 0, false
	}
}
