package service

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ConnectionString is a comma-joined, order-significant list of host:port
// pairs. Values are snapshots; re-query the group for current membership.
type ConnectionString string

func JoinAddrs(addrs []string) ConnectionString {
	return ConnectionString(strings.Join(addrs, ","))
}

func (c ConnectionString) String() string {
	return string(c)
}

// Addrs splits the string into its host:port entries.
func (c ConnectionString) Addrs() []string {
	if c == "" {
		return nil
	}

	parts := strings.Split(string(c), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Ports parses the port of every entry, in order.
func (c ConnectionString) Ports() ([]int, error) {
	addrs := c.Addrs()
	ports := make([]int, len(addrs))
	for i, addr := range addrs {
		_, p, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", addr, err)
		}
		ports[i], err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parse port of %q: %w", addr, err)
		}
	}
	return ports, nil
}

// FirstPort returns the port of the first entry.
func (c ConnectionString) FirstPort() (int, error) {
	ports, err := c.Ports()
	if err != nil {
		return 0, err
	}
	if len(ports) == 0 {
		return 0, fmt.Errorf("empty connection string")
	}
	return ports[0], nil
}
