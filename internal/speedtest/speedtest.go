// Package speedtest runs the external speed-test client.
package speedtest

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandFunc builds the external process; exec.CommandContext in production.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// CLI runs speedtest-cli in simple mode and returns its output verbatim
type CLI struct {
	binary  string
	command CommandFunc
}

func NewCLI(binary string) *CLI {
	return &CLI{binary: binary, command: exec.CommandContext}
}

// Run blocks until the client exits. Output produced before a failing exit
// is still returned together with the error.
func (c *CLI) Run(ctx context.Context) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := c.command(ctx, c.binary, "--simple")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.String(), fmt.Errorf("speedtest: %w: %s", err, msg)
		}
		return stdout.String(), fmt.Errorf("speedtest: %w", err)
	}
	return stdout.String(), nil
}
