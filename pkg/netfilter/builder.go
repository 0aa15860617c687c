package netfilter

import "strconv"

type RuleBuilder struct {
	rule *Rule
}

func NewRule() *RuleBuilder {
	return &RuleBuilder{
		rule: &Rule{},
	}
}

func (rb *RuleBuilder) Table(t Table) *RuleBuilder {
	rb.rule.Table = t
	return rb
}

func (rb *RuleBuilder) Chain(c Chain) *RuleBuilder {
	rb.rule.Chain = c
	return rb
}

func (rb *RuleBuilder) Protocol(p Protocol) *RuleBuilder {
	rb.rule.Protocol = p
	return rb
}

func (rb *RuleBuilder) Destination(cidr string) *RuleBuilder {
	rb.rule.Destination = cidr
	return rb
}

func (rb *RuleBuilder) DstPort(port string) *RuleBuilder {
	rb.rule.DstPort = port
	return rb
}

// Cgroup matches packets whose socket belongs to the net_cls class id.
func (rb *RuleBuilder) Cgroup(classID uint32) *RuleBuilder {
	rb.rule.CgroupClass = classID
	return rb
}

func (rb *RuleBuilder) Mark(mark uint32) *RuleBuilder {
	rb.rule.Mark = mark
	return rb
}

func (rb *RuleBuilder) Target(t Target) *RuleBuilder {
	rb.rule.Target = t
	return rb
}

// JumpTo sets the target to the user chain c.
func (rb *RuleBuilder) JumpTo(c Chain) *RuleBuilder {
	rb.rule.Target = Jump(c)
	return rb
}

func (rb *RuleBuilder) ToPort(port string) *RuleBuilder {
	rb.rule.ToPort = port
	return rb
}

func (rb *RuleBuilder) ToPortNumber(port uint32) *RuleBuilder {
	rb.rule.ToPort = strconv.FormatUint(uint64(port), 10)
	return rb
}

// TProxy sets a TPROXY target delivering to ip:port.
func (rb *RuleBuilder) TProxy(ip string, port uint32) *RuleBuilder {
	rb.rule.Target = TargetTProxy
	rb.rule.OnIP = ip
	return rb.ToPortNumber(port)
}

// SetMark sets a MARK target writing mark into the packet fwmark.
func (rb *RuleBuilder) SetMark(mark uint32) *RuleBuilder {
	rb.rule.Target = TargetMark
	rb.rule.SetMark = mark
	return rb
}

func (rb *RuleBuilder) Build() (*Rule, error) {
	if err := rb.rule.Validate(); err != nil {
		return nil, err
	}
	return rb.rule, nil
}

func (rb *RuleBuilder) MustBuild() *Rule {
	rule, err := rb.Build()
	if err != nil {
		panic(err)
	}
	return rule
}
