package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineBasic(t *testing.T) {
	msg, err := ParseLine("JOIN #test")
	require.NoError(t, err)
	assert.Equal(t, "JOIN", msg.Command)
	assert.Equal(t, []string{"#test"}, msg.Params)
}

func TestParseLineWithPrefixAndTrailing(t *testing.T) {
	msg, err := ParseLine(":nick!user@host PRIVMSG #test :hello there world")
	require.NoError(t, err)
	assert.Equal(t, "nick!user@host", msg.Prefix)
	assert.Equal(t, "PRIVMSG", msg.Command)
	assert.Equal(t, []string{"#test", "hello there world"}, msg.Params)
}

func TestParseLineWithTags(t *testing.T) {
	msg, err := ParseLine("@id=123;time=2026-01-01T00:00:00Z :nick!u@h PRIVMSG #c :hi")
	require.NoError(t, err)
	v, ok := msg.Tag("id")
	require.True(t, ok)
	assert.Equal(t, "123", v)
	assert.Equal(t, "nick!u@h", msg.Prefix)
	assert.Equal(t, []string{"#c", "hi"}, msg.Params)
}

func TestParseLineValueLessTag(t *testing.T) {
	msg, err := ParseLine("@away CMD p1")
	require.NoError(t, err)
	v, ok := msg.Tag("away")
	require.True(t, ok)
	assert.Equal(t, "", v)
}

func TestParseLineTagEscaping(t *testing.T) {
	msg, err := ParseLine(`@note=hello\sworld\:foo CMD p1`)
	require.NoError(t, err)
	v, _ := msg.Tag("note")
	assert.Equal(t, "hello world;foo", v)
}

func TestParseLineMalformed(t *testing.T) {
	cases := []string{"", "@tagsonly", ":prefixonly", "@"}
	for _, c := range cases {
		_, err := ParseLine(c)
		assert.ErrorIs(t, err, ErrMalformedLine, "input %q", c)
	}
}

func TestParseLineOverlong(t *testing.T) {
	long := "PRIVMSG #test :" + strings.Repeat("a", 600)
	_, err := ParseLine(long)
	assert.ErrorIs(t, err, ErrOverlongLine)
}

func TestParseLineOverlongWithTagsAllowsExtended(t *testing.T) {
	tagged := "@id=1 PRIVMSG #test :" + strings.Repeat("a", 600)
	msg, err := ParseLine(tagged)
	require.NoError(t, err)
	assert.Equal(t, "PRIVMSG", msg.Command)
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := &Message{
		Prefix:  "nick!u@h",
		Command: "PRIVMSG",
		Params:  []string{"#test", "hello there"},
	}
	line := msg.Serialize()
	assert.Equal(t, ":nick!u@h PRIVMSG #test :hello there", line)

	reparsed, err := ParseLine(line)
	require.NoError(t, err)
	assert.Equal(t, msg.Prefix, reparsed.Prefix)
	assert.Equal(t, msg.Command, reparsed.Command)
	assert.Equal(t, msg.Params, reparsed.Params)
}

func TestSerializeEmptyTrailing(t *testing.T) {
	msg := &Message{Command: "TOPIC", Params: []string{"#test", ""}}
	assert.Equal(t, "TOPIC #test :", msg.Serialize())
}

func TestSplitPrefixServerName(t *testing.T) {
	nick, user, host, isServer := SplitPrefix("irc.example.net")
	assert.True(t, isServer)
	assert.Empty(t, nick)
	assert.Empty(t, user)
	assert.Empty(t, host)
}

func TestSplitPrefixUserMask(t *testing.T) {
	nick, user, host, isServer := SplitPrefix("alice!a@host.example")
	assert.False(t, isServer)
	assert.Equal(t, "alice", nick)
	assert.Equal(t, "a", user)
	assert.Equal(t, "host.example", host)
}

func TestFrame(t *testing.T) {
	assert.Equal(t, "PING :x\r\n", Frame("PING :x"))
}
