package twitch

import (
	"strings"
	"time"
)

// ChatMessage is a single chat line received from a channel.
type ChatMessage struct {
	// Channel is the channel name without the leading '#'.
	Channel string

	// User is the sender's display name when the server provides one,
	// otherwise the login name from the message prefix.
	User string

	// Text is the message body.
	Text string

	ReceivedAt time.Time
}

// ircMessage is a parsed IRC protocol line.
type ircMessage struct {
	tags    map[string]string
	prefix  string
	command string
	params  []string
	text    string // trailing parameter
}

// parseLine parses a single IRC line of the form:
//
//	[@tags] [:prefix] COMMAND [params] [:trailing]
//
// Returns ok=false for blank or malformed lines.
func parseLine(line string) (ircMessage, bool) {
	var msg ircMessage
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return msg, false
	}

	if strings.HasPrefix(line, "@") {
		idx := strings.Index(line, " ")
		if idx < 0 {
			return msg, false
		}
		msg.tags = parseTags(line[1:idx])
		line = line[idx+1:]
	}

	if strings.HasPrefix(line, ":") {
		idx := strings.Index(line, " ")
		if idx < 0 {
			return msg, false
		}
		msg.prefix = line[1:idx]
		line = line[idx+1:]
	}

	if idx := strings.Index(line, " :"); idx >= 0 {
		msg.text = line[idx+2:]
		line = line[:idx]
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return msg, false
	}
	msg.command = fields[0]
	msg.params = fields[1:]
	return msg, true
}

// parseTags parses the IRCv3 tag block ("key=value;key=value").
func parseTags(raw string) map[string]string {
	tags := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		key, value, _ := strings.Cut(pair, "=")
		if key != "" {
			tags[key] = unescapeTag(value)
		}
	}
	return tags
}

// unescapeTag reverses IRCv3 tag value escaping.
func unescapeTag(v string) string {
	if !strings.Contains(v, "\\") {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		if v[i] != '\\' || i == len(v)-1 {
			b.WriteByte(v[i])
			continue
		}
		i++
		switch v[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

// nickFromPrefix extracts the login name from an IRC prefix
// ("nick!user@host" or just "nick").
func nickFromPrefix(prefix string) string {
	if idx := strings.Index(prefix, "!"); idx >= 0 {
		return prefix[:idx]
	}
	return prefix
}

// toChatMessage converts a parsed PRIVMSG into a [ChatMessage].
func toChatMessage(msg ircMessage, now time.Time) (ChatMessage, bool) {
	if msg.command != "PRIVMSG" || len(msg.params) == 0 {
		return ChatMessage{}, false
	}
	user := msg.tags["display-name"]
	if user == "" {
		user = nickFromPrefix(msg.prefix)
	}
	text := strings.TrimSpace(msg.text)
	if user == "" || text == "" {
		return ChatMessage{}, false
	}
	return ChatMessage{
		Channel:    strings.TrimPrefix(msg.params[0], "#"),
		User:       user,
		Text:       text,
		ReceivedAt: now,
	}, true
}
