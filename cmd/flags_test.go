package cmd

import (
	"testing"

	"github.com/spf13/cobra"
)

func newFlagCommand() *cobra.Command {
	c := &cobra.Command{Use: "test"}
	c.Flags().Float64("fraction", 0, "")
	c.Flags().Int("limit", 0, "")
	return c
}

func TestFloatFlagOr(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want float64
	}{
		{"unset uses default", nil, 0.1},
		{"explicit zero is kept", []string{"--fraction", "0"}, 0},
		{"explicit value", []string{"--fraction=0.35"}, 0.35},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newFlagCommand()
			if err := c.Flags().Parse(tc.args); err != nil {
				t.Fatalf("failed to parse flags: %v", err)
			}
			if got := floatFlagOr(c, "fraction", 0.1); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestIntFlagOr(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unset uses default", nil, 5},
		{"explicit zero is kept", []string{"--limit", "0"}, 0},
		{"explicit value", []string{"--limit", "20"}, 20},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newFlagCommand()
			if err := c.Flags().Parse(tc.args); err != nil {
				t.Fatalf("failed to parse flags: %v", err)
			}
			if got := intFlagOr(c, "limit", 5); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
