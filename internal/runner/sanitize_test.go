package runner

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text untouched",
			input: "just a reply",
			want:  "just a reply",
		},
		{
			name:  "thinking tags removed",
			input: "<thinking>secret plan</thinking>the visible reply",
			want:  "the visible reply",
		},
		{
			name:  "think tag case insensitive",
			input: "<THINK>hm</THINK>answer",
			want:  "answer",
		},
		{
			name:  "multiline thought block",
			input: "<thought>\nline\nline\n</thought>\nresult",
			want:  "result",
		},
		{
			name:  "duplicate paragraphs collapse",
			input: "same paragraph\n\nsame paragraph\n\ndifferent",
			want:  "same paragraph\n\ndifferent",
		},
		{
			name:  "routing markers survive",
			input: "done [NEXT: beta!P1] [TEAM_TASK: keep going]",
			want:  "done [NEXT: beta!P1] [TEAM_TASK: keep going]",
		},
		{
			name:  "whitespace trimmed",
			input: "\n\n  reply  \n",
			want:  "reply",
		},
		{
			name:  "empty stays empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
