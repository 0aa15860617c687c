package redirect

import (
	"fmt"
	"net"
	"strings"

	"nozomi-tproxy/pkg/netfilter"
)

const (
	DefaultPrefix     = "nozomi_tproxy"
	DefaultTProxyAddr = "127.0.0.1"
)

// Key identifies one redirection session. Every host-global name is derived
// from PID, so two sessions for different processes never share a chain or
// a group.
//
// ClassID is derived from the proxy port and Mark from the PID; neither is
// checked against other sessions or existing routing tables on the host.
type Key struct {
	Prefix     string
	PID        int
	ClassID    uint32
	ProxyPort  uint32
	TProxyAddr string
}

func NewKey(prefix string, pid int, port uint32) Key {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Key{
		Prefix:     prefix,
		PID:        pid,
		ClassID:    port,
		ProxyPort:  port,
		TProxyAddr: DefaultTProxyAddr,
	}
}

func (k Key) GroupName() string {
	return fmt.Sprintf("%s_%d", k.Prefix, k.PID)
}

func (k Key) OutputChain() netfilter.Chain {
	return netfilter.Chain(fmt.Sprintf("%s_out_%d", k.Prefix, k.PID))
}

func (k Key) PreroutingChain() netfilter.Chain {
	return netfilter.Chain(fmt.Sprintf("%s_pre_%d", k.Prefix, k.PID))
}

// Mark is the fwmark set on intercepted packets.
func (k Key) Mark() uint32 {
	return uint32(k.PID)
}

// RoutingTable is the policy routing table consulted for Mark.
func (k Key) RoutingTable() int {
	return k.PID
}

func (k Key) Validate() error {
	if k.PID <= 0 {
		return fmt.Errorf("invalid pid %d", k.PID)
	}
	if k.ProxyPort == 0 || k.ProxyPort > 65535 {
		return fmt.Errorf("invalid proxy port %d", k.ProxyPort)
	}
	if k.ClassID == 0 {
		return fmt.Errorf("class id must be non-zero")
	}
	if k.Prefix == "" || strings.ContainsAny(k.Prefix, "/ \t\n") {
		return fmt.Errorf("invalid prefix %q", k.Prefix)
	}
	if err := netfilter.ValidateChainName(k.OutputChain()); err != nil {
		return err
	}
	if err := netfilter.ValidateChainName(k.PreroutingChain()); err != nil {
		return err
	}
	if k.TProxyAddr != "" {
		if ip := net.ParseIP(k.TProxyAddr); ip == nil || ip.To4() == nil {
			return fmt.Errorf("invalid tproxy address %q", k.TProxyAddr)
		}
	}
	return nil
}
