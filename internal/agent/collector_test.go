package agent

import (
	"io"
	"log/slog"
	"testing"
)

func testAgentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseFailedUnits(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{
			name:   "no failures",
			output: "",
			want:   nil,
		},
		{
			name:   "single failed unit",
			output: "nginx.service loaded failed failed A high performance web server\n",
			want:   []string{"nginx.service"},
		},
		{
			name: "multiple units",
			output: "nginx.service loaded failed failed A high performance web server\n" +
				"redis.service loaded failed failed Advanced key-value store\n",
			want: []string{"nginx.service", "redis.service"},
		},
		{
			name:   "non-failed sub state skipped",
			output: "cron.service loaded active running Regular background program processing\n",
			want:   nil,
		},
		{
			name:   "short lines ignored",
			output: "garbage\n\nnginx.service loaded failed failed web server\n",
			want:   []string{"nginx.service"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFailedUnits([]byte(tt.output))
			if len(got) != len(tt.want) {
				t.Fatalf("parseFailedUnits returned %d units, want %d: %+v", len(got), len(tt.want), got)
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("unit[%d] = %q, want %q", i, got[i].Name, name)
				}
				if got[i].Status != "failed" {
					t.Errorf("unit[%d] status = %q, want failed", i, got[i].Status)
				}
			}
		})
	}
}
