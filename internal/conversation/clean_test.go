package conversation

import "testing"

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		char string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			char: "Kira",
			in:   "Hey chat, what's up?",
			want: "Hey chat, what's up?",
		},
		{
			name: "leading self prefix stripped",
			char: "Kira",
			in:   "Kira: Hey chat, what's up?",
			want: "Hey chat, what's up?",
		},
		{
			name: "prefix stripped on every line",
			char: "Kira",
			in:   "Kira: First thought.\nKira: Second thought.",
			want: "First thought.\nSecond thought.",
		},
		{
			name: "prefix match is case insensitive",
			char: "Kira",
			in:   "KIRA: loud and clear",
			want: "loud and clear",
		},
		{
			name: "mid-sentence name kept",
			char: "Kira",
			in:   "Someone said Kira: is a weird handle.",
			want: "Someone said Kira: is a weird handle.",
		},
		{
			name: "end of sequence markers removed",
			char: "Kira",
			in:   "That's all folks.</s>",
			want: "That's all folks.",
		},
		{
			name: "open and close markers removed",
			char: "Kira",
			in:   "<s>Mid</s>dle",
			want: "Middle",
		},
		{
			name: "asterisks removed",
			char: "Kira",
			in:   "*giggles* no way, *really*?",
			want: "giggles no way, really?",
		},
		{
			name: "surrounding whitespace trimmed",
			char: "Kira",
			in:   "  \n  hello  \n ",
			want: "hello",
		},
		{
			name: "empty name skips prefix strip",
			char: "",
			in:   "Kira: still here",
			want: "Kira: still here",
		},
		{
			name: "regex metacharacters in name quoted",
			char: "K.ra",
			in:   "Kxra: should not match",
			want: "Kxra: should not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanResponse(tt.char, tt.in)
			if got != tt.want {
				t.Errorf("CleanResponse(%q, %q) = %q, want %q", tt.char, tt.in, got, tt.want)
			}
		})
	}
}
