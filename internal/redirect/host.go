package redirect

import (
	"context"
	"fmt"

	"nozomi-tproxy/pkg/cgroup"
	"nozomi-tproxy/pkg/netfilter"
	"nozomi-tproxy/pkg/route"
)

type Firewall interface {
	NewChain(table netfilter.Table, chain netfilter.Chain) error
	DeleteChain(table netfilter.Table, chain netfilter.Chain) error
	AddRule(rule *netfilter.Rule) error
	DeleteRule(rule *netfilter.Rule) error
}

type Classifier interface {
	Create(name string, classID uint32) error
	Remove(name string) error
	Enroll(name string, pid int) error
	Release(pid int) error
}

type Router interface {
	AddMarkRule(mark uint32, table int) error
	DeleteMarkRule(mark uint32, table int) error
	AddLocalRoute(table int) error
	DeleteLocalRoute(table int) error
}

// HostExecutor applies ops to the running kernel.
type HostExecutor struct {
	firewall   Firewall
	classifier Classifier
	router     Router
	close      func()
}

func NewHostExecutor(fw Firewall, cls Classifier, rt Router) *HostExecutor {
	return &HostExecutor{
		firewall:   fw,
		classifier: cls,
		router:     rt,
	}
}

// OpenHost binds an executor to the host's iptables, the net_cls hierarchy
// at cgroupRoot and a netlink route socket.
func OpenHost(cgroupRoot string) (*HostExecutor, error) {
	cls := cgroup.New(cgroupRoot)
	if err := cls.Available(); err != nil {
		return nil, err
	}

	fw, err := netfilter.NewManager()
	if err != nil {
		return nil, err
	}

	rt, err := route.New()
	if err != nil {
		return nil, err
	}

	h := NewHostExecutor(fw, cls, rt)
	h.close = rt.Close
	return h, nil
}

func (h *HostExecutor) Close() {
	if h.close != nil {
		h.close()
	}
}

func (h *HostExecutor) Exec(_ context.Context, op Op) error {
	switch o := op.(type) {
	case CreateGroup:
		return h.classifier.Create(o.Name, o.ClassID)
	case RemoveGroup:
		return h.classifier.Remove(o.Name)
	case EnrollProcess:
		return h.classifier.Enroll(o.Group, o.PID)
	case ReleaseProcess:
		return h.classifier.Release(o.PID)
	case CreateChain:
		return h.firewall.NewChain(o.Table, o.Chain)
	case DeleteChain:
		return h.firewall.DeleteChain(o.Table, o.Chain)
	case AppendRule:
		return h.firewall.AddRule(o.Rule)
	case DeleteRule:
		return h.firewall.DeleteRule(o.Rule)
	case AddMarkRule:
		return h.router.AddMarkRule(o.Mark, o.Table)
	case DeleteMarkRule:
		return h.router.DeleteMarkRule(o.Mark, o.Table)
	case AddLocalRoute:
		return h.router.AddLocalRoute(o.Table)
	case DeleteLocalRoute:
		return h.router.DeleteLocalRoute(o.Table)
	default:
		return fmt.Errorf("unsupported op %T", op)
	}
}
