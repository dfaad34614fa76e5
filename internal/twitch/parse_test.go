package twitch

import (
	"testing"
	"time"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantOK      bool
		wantCommand string
		wantPrefix  string
		wantText    string
	}{
		{
			name:        "privmsg with tags",
			line:        "@display-name=Viewer123;color=#FF0000 :viewer123!viewer123@viewer123.tmi.twitch.tv PRIVMSG #kira :hello there",
			wantOK:      true,
			wantCommand: "PRIVMSG",
			wantPrefix:  "viewer123!viewer123@viewer123.tmi.twitch.tv",
			wantText:    "hello there",
		},
		{
			name:        "ping",
			line:        "PING :tmi.twitch.tv",
			wantOK:      true,
			wantCommand: "PING",
			wantText:    "tmi.twitch.tv",
		},
		{
			name:        "numeric welcome",
			line:        ":tmi.twitch.tv 001 kirabot :Welcome, GLHF!",
			wantOK:      true,
			wantCommand: "001",
			wantPrefix:  "tmi.twitch.tv",
			wantText:    "Welcome, GLHF!",
		},
		{
			name:   "blank line",
			line:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := parseLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("parseLine(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if msg.command != tt.wantCommand {
				t.Errorf("command = %q, want %q", msg.command, tt.wantCommand)
			}
			if msg.prefix != tt.wantPrefix {
				t.Errorf("prefix = %q, want %q", msg.prefix, tt.wantPrefix)
			}
			if msg.text != tt.wantText {
				t.Errorf("text = %q, want %q", msg.text, tt.wantText)
			}
		})
	}
}

func TestParseTagsEscaping(t *testing.T) {
	tags := parseTags(`display-name=Some\sUser;msg=a\:b\\c`)
	if got := tags["display-name"]; got != "Some User" {
		t.Errorf("display-name = %q, want %q", got, "Some User")
	}
	if got := tags["msg"]; got != `a;b\c` {
		t.Errorf("msg = %q, want %q", got, `a;b\c`)
	}
}

func TestToChatMessage(t *testing.T) {
	now := time.Now()

	msg, ok := parseLine("@display-name=CoolViewer :coolviewer!x@y PRIVMSG #kira :whats up")
	if !ok {
		t.Fatal("parseLine failed")
	}
	chat, ok := toChatMessage(msg, now)
	if !ok {
		t.Fatal("toChatMessage returned ok=false")
	}
	if chat.User != "CoolViewer" {
		t.Errorf("User = %q, want display name %q", chat.User, "CoolViewer")
	}
	if chat.Channel != "kira" {
		t.Errorf("Channel = %q, want %q", chat.Channel, "kira")
	}
	if chat.Text != "whats up" {
		t.Errorf("Text = %q, want %q", chat.Text, "whats up")
	}
	if !chat.ReceivedAt.Equal(now) {
		t.Errorf("ReceivedAt = %v, want %v", chat.ReceivedAt, now)
	}
}

func TestToChatMessageFallsBackToPrefix(t *testing.T) {
	msg, _ := parseLine(":someuser!x@y PRIVMSG #kira :no tags here")
	chat, ok := toChatMessage(msg, time.Now())
	if !ok {
		t.Fatal("toChatMessage returned ok=false")
	}
	if chat.User != "someuser" {
		t.Errorf("User = %q, want prefix nick %q", chat.User, "someuser")
	}
}

func TestToChatMessageRejectsNonPrivmsg(t *testing.T) {
	msg, _ := parseLine("PING :tmi.twitch.tv")
	if _, ok := toChatMessage(msg, time.Now()); ok {
		t.Error("PING should not convert to a chat message")
	}
}
