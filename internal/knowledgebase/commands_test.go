package knowledgebase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCommands(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single command",
			text: "Restart the service using `systemctl restart svc`. Then check logs.",
			want: []string{"systemctl restart svc"},
		},
		{
			name: "no backticks",
			text: "Reboot the machine. Then check logs.",
			want: []string{},
		},
		{
			name: "only first pair per segment",
			text: "Run `cmd1` or `cmd2`",
			want: []string{"cmd1"},
		},
		{
			name: "one command per segment",
			text: "Stop it with `svc stop`. Start it with `svc start`.",
			want: []string{"svc stop", "svc start"},
		},
		{
			name: "period inside a command splits it",
			text: "Edit `/etc/app.conf` now.",
			want: []string{"/etc/app", " now"},
		},
		{
			name: "lone backtick takes the rest of the segment",
			text: "Type `df -h and read it. Done.",
			want: []string{"df -h and read it"},
		},
		{
			name: "empty quotes",
			text: "Nothing to run ``.",
			want: []string{""},
		},
		{
			name: "empty text",
			text: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCommands(tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchResultJoinedCommands(t *testing.T) {
	assert.Equal(t, "", MatchResult{Commands: []string{}}.JoinedCommands())
	assert.Equal(t, "a\nb", MatchResult{Commands: []string{"a", "b"}}.JoinedCommands())
}
