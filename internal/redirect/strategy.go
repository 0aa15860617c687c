package redirect

import (
	"fmt"

	"nozomi-tproxy/pkg/netfilter"
)

// DNSPort is the only UDP destination port redirected by Direct.
const DNSPort = "53"

// Strategy turns a Key into the ordered steps that install redirection.
type Strategy interface {
	Name() string
	Steps(k Key) ([]Step, error)
}

// StrategyFor returns TProxy when tproxy is set and Direct otherwise.
func StrategyFor(tproxy bool) Strategy {
	if tproxy {
		return TProxy{}
	}
	return Direct{}
}

func classify(k Key) []Step {
	return []Step{
		CreateGroup{Name: k.GroupName(), ClassID: k.ClassID},
		EnrollProcess{Group: k.GroupName(), PID: k.PID},
	}
}

func link(table netfilter.Table, hook, chain netfilter.Chain) []Step {
	return []Step{
		CreateChain{Table: table, Chain: chain},
		AppendRule{Rule: netfilter.NewRule().Table(table).Chain(hook).JumpTo(chain).MustBuild()},
	}
}

// Direct rewrites the destination port of the process's TCP traffic and
// DNS queries to the proxy port with nat REDIRECT. Other UDP traffic is
// left alone.
type Direct struct{}

func (Direct) Name() string { return "redirect" }

func (Direct) Steps(k Key) ([]Step, error) {
	if err := k.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redirection key: %w", err)
	}

	out := k.OutputChain()
	steps := classify(k)
	steps = append(steps, link(netfilter.TableNat, netfilter.ChainOutput, out)...)

	tcp, err := netfilter.NewRule().
		Table(netfilter.TableNat).
		Chain(out).
		Protocol(netfilter.ProtocolTCP).
		Cgroup(k.ClassID).
		Target(netfilter.TargetRedirect).
		ToPortNumber(k.ProxyPort).
		Build()
	if err != nil {
		return nil, err
	}

	dns, err := netfilter.NewRule().
		Table(netfilter.TableNat).
		Chain(out).
		Protocol(netfilter.ProtocolUDP).
		DstPort(DNSPort).
		Cgroup(k.ClassID).
		Target(netfilter.TargetRedirect).
		ToPortNumber(k.ProxyPort).
		Build()
	if err != nil {
		return nil, err
	}

	return append(steps, AppendRule{Rule: tcp}, AppendRule{Rule: dns}), nil
}

// TProxy marks every TCP and UDP packet of the process, routes marked
// packets back into the host through lo, and hands them to the proxy with
// TPROXY so the original destination is preserved.
type TProxy struct{}

func (TProxy) Name() string { return "tproxy" }

// reservedTables are routing table ids the kernel or iproute2 already use
// (unspec, compat, default, main, local). A PID equal to one of them cannot
// double as a routing table.
var reservedTables = map[int]string{
	0:   "unspec",
	252: "compat",
	253: "default",
	254: "main",
	255: "local",
}

func (TProxy) Steps(k Key) ([]Step, error) {
	if err := k.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redirection key: %w", err)
	}
	if name, ok := reservedTables[k.RoutingTable()]; ok {
		return nil, fmt.Errorf("pid %d collides with the reserved %q routing table", k.PID, name)
	}

	addr := k.TProxyAddr
	if addr == "" {
		addr = DefaultTProxyAddr
	}

	steps := []Step{
		AddMarkRule{Mark: k.Mark(), Table: k.RoutingTable()},
		AddLocalRoute{Table: k.RoutingTable()},
	}
	steps = append(steps, classify(k)...)

	pre := k.PreroutingChain()
	steps = append(steps, link(netfilter.TableMangle, netfilter.ChainPrerouting, pre)...)
	for _, proto := range []netfilter.Protocol{netfilter.ProtocolUDP, netfilter.ProtocolTCP} {
		rule, err := netfilter.NewRule().
			Table(netfilter.TableMangle).
			Chain(pre).
			Protocol(proto).
			Mark(k.Mark()).
			TProxy(addr, k.ProxyPort).
			Build()
		if err != nil {
			return nil, err
		}
		steps = append(steps, AppendRule{Rule: rule})
	}

	out := k.OutputChain()
	steps = append(steps, link(netfilter.TableMangle, netfilter.ChainOutput, out)...)
	for _, proto := range []netfilter.Protocol{netfilter.ProtocolTCP, netfilter.ProtocolUDP} {
		rule, err := netfilter.NewRule().
			Table(netfilter.TableMangle).
			Chain(out).
			Protocol(proto).
			Cgroup(k.ClassID).
			SetMark(k.Mark()).
			Build()
		if err != nil {
			return nil, err
		}
		steps = append(steps, AppendRule{Rule: rule})
	}

	return steps, nil
}
