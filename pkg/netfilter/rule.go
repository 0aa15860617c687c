package netfilter

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

type Table string

const (
	TableNat    Table = "nat"
	TableMangle Table = "mangle"
)

type Chain string

const (
	ChainInput       Chain = "INPUT"
	ChainOutput      Chain = "OUTPUT"
	ChainForward     Chain = "FORWARD"
	ChainPrerouting  Chain = "PREROUTING"
	ChainPostrouting Chain = "POSTROUTING"
)

// MaxChainNameLen is the longest user chain name the kernel accepts.
const MaxChainNameLen = 28

func (c Chain) Builtin() bool {
	switch c {
	case ChainInput, ChainOutput, ChainForward, ChainPrerouting, ChainPostrouting:
		return true
	}
	return false
}

// Target is either a builtin verdict/extension or the name of a user chain
// to jump to.
type Target string

const (
	TargetAccept   Target = "ACCEPT"
	TargetDrop     Target = "DROP"
	TargetReject   Target = "REJECT"
	TargetRedirect Target = "REDIRECT"
	TargetReturn   Target = "RETURN"
	TargetTProxy   Target = "TPROXY"
	TargetMark     Target = "MARK"
)

func (t Target) Builtin() bool {
	switch t {
	case TargetAccept, TargetDrop, TargetReject, TargetRedirect,
		TargetReturn, TargetTProxy, TargetMark:
		return true
	}
	return false
}

// Jump returns the target that jumps into the user chain c.
func Jump(c Chain) Target {
	return Target(c)
}

type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

type Rule struct {
	Table       Table
	Chain       Chain
	Protocol    Protocol
	Destination string
	DstPort     string

	// CgroupClass matches the net_cls class id of the sending socket. Zero
	// disables the match.
	CgroupClass uint32
	// Mark matches the packet fwmark. Zero disables the match.
	Mark uint32

	Target  Target
	ToPort  string
	OnIP    string
	SetMark uint32
}

// Spec returns the rule specification without table and chain, in the form
// accepted by iptables -A/-D/-C.
func (r *Rule) Spec() []string {
	var args []string

	if r.Protocol != "" {
		args = append(args, "-p", string(r.Protocol))
	}

	if r.Destination != "" {
		args = append(args, "-d", r.Destination)
	}

	if r.DstPort != "" {
		args = append(args, "--dport", r.DstPort)
	}

	if r.CgroupClass != 0 {
		args = append(args, "-m", "cgroup", "--cgroup", strconv.FormatUint(uint64(r.CgroupClass), 10))
	}

	if r.Mark != 0 {
		args = append(args, "-m", "mark", "--mark", strconv.FormatUint(uint64(r.Mark), 10))
	}

	args = append(args, "-j", string(r.Target))

	switch r.Target {
	case TargetRedirect:
		if r.ToPort != "" {
			args = append(args, "--to-ports", r.ToPort)
		}
	case TargetTProxy:
		if r.OnIP != "" {
			args = append(args, "--on-ip", r.OnIP)
		}
		args = append(args, "--on-port", r.ToPort)
	case TargetMark:
		args = append(args, "--set-mark", strconv.FormatUint(uint64(r.SetMark), 10))
	}

	return args
}

// Args returns the full iptables argument list that appends this rule.
func (r *Rule) Args() []string {
	args := []string{"-t", string(r.Table), "-A", string(r.Chain)}
	return append(args, r.Spec()...)
}

func (r *Rule) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("table=%s", r.Table))
	parts = append(parts, fmt.Sprintf("chain=%s", r.Chain))

	if r.Protocol != "" {
		parts = append(parts, fmt.Sprintf("proto=%s", r.Protocol))
	}

	if r.Destination != "" {
		parts = append(parts, fmt.Sprintf("dst=%s", r.Destination))
	}

	if r.DstPort != "" {
		parts = append(parts, fmt.Sprintf("dport=%s", r.DstPort))
	}

	if r.CgroupClass != 0 {
		parts = append(parts, fmt.Sprintf("cgroup=%d", r.CgroupClass))
	}

	if r.Mark != 0 {
		parts = append(parts, fmt.Sprintf("mark=%d", r.Mark))
	}

	parts = append(parts, fmt.Sprintf("target=%s", r.Target))

	if r.OnIP != "" {
		parts = append(parts, fmt.Sprintf("onip=%s", r.OnIP))
	}

	if r.ToPort != "" {
		parts = append(parts, fmt.Sprintf("toport=%s", r.ToPort))
	}

	if r.SetMark != 0 {
		parts = append(parts, fmt.Sprintf("setmark=%d", r.SetMark))
	}

	return strings.Join(parts, " ")
}

func (r *Rule) Validate() error {
	if r.Table == "" {
		return fmt.Errorf("table is required")
	}

	if err := ValidateChainName(r.Chain); err != nil {
		return err
	}

	if r.Target == "" {
		return fmt.Errorf("target is required")
	}

	if !r.Target.Builtin() {
		if err := ValidateChainName(Chain(r.Target)); err != nil {
			return fmt.Errorf("invalid jump target: %w", err)
		}
	}

	if r.Target == TargetRedirect && r.ToPort == "" {
		return fmt.Errorf("REDIRECT target requires --to-ports")
	}

	if r.Target == TargetTProxy {
		if r.Table != TableMangle {
			return fmt.Errorf("TPROXY target is only valid in the mangle table")
		}
		if r.ToPort == "" {
			return fmt.Errorf("TPROXY target requires --on-port")
		}
		if r.OnIP != "" && net.ParseIP(r.OnIP) == nil {
			return fmt.Errorf("invalid TPROXY address: %s", r.OnIP)
		}
	}

	if r.Target == TargetMark && r.SetMark == 0 {
		return fmt.Errorf("MARK target requires a non-zero --set-mark")
	}

	if r.DstPort != "" && r.Protocol == "" {
		return fmt.Errorf("port specifications require protocol")
	}

	if r.DstPort != "" {
		if err := validatePort(r.DstPort); err != nil {
			return fmt.Errorf("invalid destination port: %w", err)
		}
	}

	if r.ToPort != "" {
		if err := validatePort(r.ToPort); err != nil {
			return fmt.Errorf("invalid redirect port: %w", err)
		}
	}

	if r.Destination != "" {
		if err := validateCIDR(r.Destination); err != nil {
			return fmt.Errorf("invalid destination CIDR: %w", err)
		}
	}

	return nil
}

// ValidateChainName reports whether c can be used as an iptables chain name.
func ValidateChainName(c Chain) error {
	if c == "" {
		return fmt.Errorf("chain is required")
	}
	if len(c) > MaxChainNameLen {
		return fmt.Errorf("chain name %q exceeds %d characters", c, MaxChainNameLen)
	}
	if strings.ContainsAny(string(c), " \t\n!") || strings.HasPrefix(string(c), "-") {
		return fmt.Errorf("chain name %q contains invalid characters", c)
	}
	return nil
}

func validateCIDR(cidr string) error {
	if strings.Contains(cidr, "/") {
		_, _, err := net.ParseCIDR(cidr)
		if err != nil {
			return fmt.Errorf("invalid CIDR notation: %w", err)
		}
		return nil
	}

	ip := net.ParseIP(cidr)
	if ip == nil {
		return fmt.Errorf("not a valid IP address or CIDR: %s", cidr)
	}

	return nil
}

func validatePort(port string) error {
	if port == "" {
		return nil
	}

	if strings.Contains(port, ":") {
		parts := strings.Split(port, ":")
		if len(parts) != 2 {
			return fmt.Errorf("invalid port range format: %s", port)
		}
		if err := validateSinglePort(parts[0]); err != nil {
			return err
		}
		return validateSinglePort(parts[1])
	}

	return validateSinglePort(port)
}

func validateSinglePort(port string) error {
	p, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric: %s", port)
	}
	if p < 1 || p > 65535 {
		return fmt.Errorf("port must be between 1 and 65535: %d", p)
	}
	return nil
}
