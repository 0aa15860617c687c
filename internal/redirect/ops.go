package redirect

import (
	"fmt"
	"strings"

	"nozomi-tproxy/pkg/netfilter"
)

// Op is a single privileged mutation of host state.
type Op interface {
	String() string
}

// Step is an Op that creates something, paired with the Op that removes
// exactly that thing again.
type Step interface {
	Op
	Undo() Op
}

type CreateGroup struct {
	Name    string
	ClassID uint32
}

func (o CreateGroup) String() string {
	return fmt.Sprintf("cgroup create %s classid %d", o.Name, o.ClassID)
}

func (o CreateGroup) Undo() Op { return RemoveGroup{Name: o.Name} }

type RemoveGroup struct {
	Name string
}

func (o RemoveGroup) String() string {
	return fmt.Sprintf("cgroup remove %s", o.Name)
}

type EnrollProcess struct {
	Group string
	PID   int
}

func (o EnrollProcess) String() string {
	return fmt.Sprintf("cgroup enroll %s pid %d", o.Group, o.PID)
}

func (o EnrollProcess) Undo() Op { return ReleaseProcess(o) }

type ReleaseProcess struct {
	Group string
	PID   int
}

func (o ReleaseProcess) String() string {
	return fmt.Sprintf("cgroup release %s pid %d", o.Group, o.PID)
}

type CreateChain struct {
	Table netfilter.Table
	Chain netfilter.Chain
}

func (o CreateChain) String() string {
	return fmt.Sprintf("iptables -t %s -N %s", o.Table, o.Chain)
}

func (o CreateChain) Undo() Op { return DeleteChain(o) }

// DeleteChain flushes and deletes a user chain.
type DeleteChain struct {
	Table netfilter.Table
	Chain netfilter.Chain
}

func (o DeleteChain) String() string {
	return fmt.Sprintf("iptables -t %s -F/-X %s", o.Table, o.Chain)
}

type AppendRule struct {
	Rule *netfilter.Rule
}

func (o AppendRule) String() string {
	return "iptables " + strings.Join(o.Rule.Args(), " ")
}

func (o AppendRule) Undo() Op { return DeleteRule(o) }

type DeleteRule struct {
	Rule *netfilter.Rule
}

func (o DeleteRule) String() string {
	args := append([]string{"-t", string(o.Rule.Table), "-D", string(o.Rule.Chain)}, o.Rule.Spec()...)
	return "iptables " + strings.Join(args, " ")
}

type AddMarkRule struct {
	Mark  uint32
	Table int
}

func (o AddMarkRule) String() string {
	return fmt.Sprintf("ip rule add fwmark %d table %d", o.Mark, o.Table)
}

func (o AddMarkRule) Undo() Op { return DeleteMarkRule(o) }

type DeleteMarkRule struct {
	Mark  uint32
	Table int
}

func (o DeleteMarkRule) String() string {
	return fmt.Sprintf("ip rule del fwmark %d table %d", o.Mark, o.Table)
}

type AddLocalRoute struct {
	Table int
}

func (o AddLocalRoute) String() string {
	return fmt.Sprintf("ip route add local 0.0.0.0/0 dev lo table %d", o.Table)
}

func (o AddLocalRoute) Undo() Op { return DeleteLocalRoute(o) }

type DeleteLocalRoute struct {
	Table int
}

func (o DeleteLocalRoute) String() string {
	return fmt.Sprintf("ip route del local 0.0.0.0/0 dev lo table %d", o.Table)
}
