package wifi

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandFunc builds the external process; exec.CommandContext in production.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// NMCLI talks to NetworkManager through its command line client.
type NMCLI struct {
	binary  string
	iface   string
	command CommandFunc
}

func NewNMCLI(binary, iface string) *NMCLI {
	return &NMCLI{binary: binary, iface: iface, command: exec.CommandContext}
}

func (n *NMCLI) run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := n.command(ctx, n.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("nmcli %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Scan lists the networks visible on the interface.
func (n *NMCLI) Scan(ctx context.Context) ([]Network, error) {
	out, err := n.run(ctx, "-t", "-f", "IN-USE,SSID", "device", "wifi", "list", "ifname", n.iface)
	if err != nil {
		return nil, err
	}
	var nets []Network
	for _, line := range strings.Split(out, "\n") {
		fields := splitTerse(line)
		if len(fields) < 2 || fields[1] == "" {
			continue
		}
		nets = append(nets, Network{SSID: fields[1], InUse: strings.TrimSpace(fields[0]) == "*"})
	}
	return nets, nil
}

// ProfileUUID finds a saved connection profile by name.
func (n *NMCLI) ProfileUUID(ctx context.Context, name string) (string, bool, error) {
	out, err := n.run(ctx, "-t", "-f", "NAME,UUID", "connection", "show")
	if err != nil {
		return "", false, err
	}
	for _, line := range strings.Split(out, "\n") {
		fields := splitTerse(line)
		if len(fields) >= 2 && fields[0] == name {
			return fields[1], true, nil
		}
	}
	return "", false, nil
}

func (n *NMCLI) Up(ctx context.Context, uuid string) error {
	_, err := n.run(ctx, "connection", "up", uuid)
	return err
}

func (n *NMCLI) Connect(ctx context.Context, ssid, password string) error {
	args := []string{"device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	args = append(args, "ifname", n.iface)
	_, err := n.run(ctx, args...)
	return err
}

// splitTerse splits one line of nmcli terse output on unescaped colons.
func splitTerse(line string) []string {
	if line == "" {
		return nil
	}
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, cur.String())
}
