//go:build linux

package netfilter

import (
	"fmt"

	"github.com/coreos/go-iptables/iptables"
)

// NewManager returns a Manager bound to the host's IPv4 iptables.
func NewManager() (*Manager, error) {
	ipt, err := iptables.NewWithProtocol(iptables.ProtocolIPv4)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize iptables: %w", err)
	}
	return NewManagerWithTables(ipt), nil
}
