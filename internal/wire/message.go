// Package wire implements the IRC line codec: framing, parsing, and
// serialization of RFC 1459 messages with the IRCv3 message-tags extension
// (spec.md §4.1). It is deliberately free of any connection or state-store
// dependency so it can be fuzzed and unit tested in isolation.
package wire

import (
	"errors"
	"strings"
)

// Size limits from spec.md §4.1 and §8 (boundary invariant 9).
const (
	MaxLineBytes         = 512   // base RFC 1459 limit, including CR LF
	MaxTaggedLineBytes   = 8191  // IRCv3 extended limit when tags are present
	maxLineBytesNoCRLF   = MaxLineBytes - 2
	maxTaggedBytesNoCRLF = MaxTaggedLineBytes - 2
)

// Errors returned by Parse. Per spec.md §4.1 and §9 both are recoverable:
// the caller discards the line and, for OverlongLine, bumps a flood counter.
var (
	ErrMalformedLine = errors.New("wire: malformed line")
	ErrOverlongLine  = errors.New("wire: overlong line")
)

// Tag is a single IRCv3 message tag (key[=value]).
type Tag struct {
	Key   string
	Value string // empty if the tag carries no value
}

// Message is a parsed IRC protocol line.
//
//	[ '@' tags SP ] [ ':' prefix SP ] command { SP param } [ SP ':' trailing ]
type Message struct {
	Tags    []Tag
	Prefix  string // server name, or nick!user@host
	Command string
	Params  []string
}

// Tag looks up a tag by key.
func (m *Message) Tag(key string) (string, bool) {
	for _, t := range m.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// Prefix components, split lazily on demand (spec.md §4.1: "bare server name
// or nick!user@host").
func SplitPrefix(prefix string) (nick, user, host string, isServer bool) {
	bang := strings.IndexByte(prefix, '!')
	if bang < 0 {
		return "", "", "", true
	}
	nick = prefix[:bang]
	rest := prefix[bang+1:]
	at := strings.IndexByte(rest, '@')
	if at < 0 {
		return nick, rest, "", false
	}
	return nick, rest[:at], rest[at+1:], false
}

// JoinPrefix builds a nick!user@host prefix.
func JoinPrefix(nick, user, host string) string {
	return nick + "!" + user + "@" + host
}

// ParseLine parses a single CRLF-stripped (or bare-LF-stripped) line. The
// line must not contain the terminator. Returns ErrMalformedLine for
// structurally invalid input and ErrOverlongLine when the line (plus a
// synthetic CRLF) would exceed the size limit that applies given whether
// tags are present.
func ParseLine(line string) (*Message, error) {
	hasTags := strings.HasPrefix(line, "@")
	limit := maxLineBytesNoCRLF
	if hasTags {
		limit = maxTaggedBytesNoCRLF
	}
	if len(line) > limit {
		return nil, ErrOverlongLine
	}
	if line == "" {
		return nil, ErrMalformedLine
	}

	msg := &Message{}
	rest := line

	if hasTags {
		sp := strings.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, ErrMalformedLine
		}
		tagPart := rest[1:sp]
		rest = strings.TrimLeft(rest[sp+1:], " ")
		if tagPart == "" {
			return nil, ErrMalformedLine
		}
		for _, kv := range strings.Split(tagPart, ";") {
			if kv == "" {
				continue
			}
			if eq := strings.IndexByte(kv, '='); eq >= 0 {
				msg.Tags = append(msg.Tags, Tag{Key: kv[:eq], Value: unescapeTagValue(kv[eq+1:])})
			} else {
				msg.Tags = append(msg.Tags, Tag{Key: kv})
			}
		}
	}

	if rest == "" {
		return nil, ErrMalformedLine
	}

	if rest[0] == ':' {
		sp := strings.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, ErrMalformedLine
		}
		msg.Prefix = rest[1:sp]
		rest = strings.TrimLeft(rest[sp+1:], " ")
	}

	if rest == "" {
		return nil, ErrMalformedLine
	}

	for rest != "" {
		if rest[0] == ':' {
			msg.Params = append(msg.Params, rest[1:])
			rest = ""
			break
		}
		sp := strings.IndexByte(rest, ' ')
		if sp < 0 {
			msg.Params = append(msg.Params, rest)
			rest = ""
			break
		}
		msg.Params = append(msg.Params, rest[:sp])
		rest = strings.TrimLeft(rest[sp+1:], " ")
	}

	if len(msg.Params) == 0 {
		return nil, ErrMalformedLine
	}

	msg.Command = strings.ToUpper(msg.Params[0])
	msg.Params = msg.Params[1:]

	return msg, nil
}

// Serialize renders the message back to wire form, without the CR LF
// terminator (the connection writer appends exactly one). Trailing
// parameters containing a space, starting with ':', or empty are emitted
// with a leading colon, per spec.md §4.1.
func (m *Message) Serialize() string {
	var b strings.Builder

	if len(m.Tags) > 0 {
		b.WriteByte('@')
		for i, t := range m.Tags {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteString(t.Key)
			if t.Value != "" {
				b.WriteByte('=')
				b.WriteString(escapeTagValue(t.Value))
			}
		}
		b.WriteByte(' ')
	}

	if m.Prefix != "" {
		b.WriteByte(':')
		b.WriteString(m.Prefix)
		b.WriteByte(' ')
	}

	b.WriteString(m.Command)

	for i, p := range m.Params {
		b.WriteByte(' ')
		last := i == len(m.Params)-1
		if last && (p == "" || strings.Contains(p, " ") || strings.HasPrefix(p, ":")) {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}

	return b.String()
}

// Frame appends the canonical CRLF terminator.
func Frame(raw string) string {
	return raw + "\r\n"
}

var tagEscapes = strings.NewReplacer(
	"\\", "\\\\",
	";", "\\:",
	" ", "\\s",
	"\r", "\\r",
	"\n", "\\n",
)

var tagUnescapes = strings.NewReplacer(
	"\\\\", "\\",
	"\\:", ";",
	"\\s", " ",
	"\\r", "\r",
	"\\n", "\n",
	"\\", "",
)

func escapeTagValue(v string) string { return tagEscapes.Replace(v) }
func unescapeTagValue(v string) string { return tagUnescapes.Replace(v) }
