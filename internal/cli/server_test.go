package cli

import (
	"testing"
	"time"
)

func TestWriteTimeoutCoversSubmissionDeadline(t *testing.T) {
	cases := []struct {
		deadline time.Duration
		want     time.Duration
	}{
		{deadline: 2 * time.Second, want: 15 * time.Second},
		{deadline: 10 * time.Second, want: 15 * time.Second},
		{deadline: 30 * time.Second, want: 35 * time.Second},
	}
	for _, c := range cases {
		got := writeTimeout(c.deadline)
		if got != c.want {
			t.Fatalf("deadline %s: expected %s, got %s", c.deadline, c.want, got)
		}
		if got <= c.deadline {
			t.Fatalf("deadline %s: write timeout %s does not cover it", c.deadline, got)
		}
	}
}
