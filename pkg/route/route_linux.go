//go:build linux

package route

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

const loopback = "lo"

// Handle is the subset of *netlink.Handle used by Manager.
type Handle interface {
	RuleAdd(rule *netlink.Rule) error
	RuleDel(rule *netlink.Rule) error
	RouteAdd(route *netlink.Route) error
	RouteDel(route *netlink.Route) error
	LinkByName(name string) (netlink.Link, error)
}

type Manager struct {
	h     Handle
	close func()
}

func New() (*Manager, error) {
	h, err := netlink.NewHandle(unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("failed to open netlink handle: %w", err)
	}
	return &Manager{h: h, close: h.Delete}, nil
}

func NewWithHandle(h Handle) *Manager {
	return &Manager{h: h}
}

func (m *Manager) Close() {
	if m.close != nil {
		m.close()
	}
}

func markRule(mark uint32, table int) *netlink.Rule {
	rule := netlink.NewRule()
	rule.Family = netlink.FAMILY_V4
	rule.Mark = int(mark)
	rule.Table = table
	return rule
}

func (m *Manager) AddMarkRule(mark uint32, table int) error {
	if err := m.h.RuleAdd(markRule(mark, table)); err != nil {
		return fmt.Errorf("ip rule add fwmark %d table %d: %w", mark, table, err)
	}
	return nil
}

func (m *Manager) DeleteMarkRule(mark uint32, table int) error {
	if err := m.h.RuleDel(markRule(mark, table)); err != nil {
		return fmt.Errorf("ip rule del fwmark %d table %d: %w", mark, table, err)
	}
	return nil
}

func (m *Manager) localRoute(table int) (*netlink.Route, error) {
	lo, err := m.h.LinkByName(loopback)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", loopback, err)
	}

	return &netlink.Route{
		LinkIndex: lo.Attrs().Index,
		Dst:       &net.IPNet{IP: net.IPv4zero, Mask: net.CIDRMask(0, 32)},
		Table:     table,
		Type:      unix.RTN_LOCAL,
		Scope:     netlink.SCOPE_HOST,
	}, nil
}

func (m *Manager) AddLocalRoute(table int) error {
	r, err := m.localRoute(table)
	if err != nil {
		return err
	}
	if err := m.h.RouteAdd(r); err != nil {
		return fmt.Errorf("ip route add local 0.0.0.0/0 dev lo table %d: %w", table, err)
	}
	return nil
}

func (m *Manager) DeleteLocalRoute(table int) error {
	r, err := m.localRoute(table)
	if err != nil {
		return err
	}
	if err := m.h.RouteDel(r); err != nil {
		return fmt.Errorf("ip route del local 0.0.0.0/0 dev lo table %d: %w", table, err)
	}
	return nil
}
