package netfilter

import (
	"errors"
	"fmt"
)

// ErrChainExists is returned by NewChain when the chain is already present,
// typically left behind by a session that was not torn down.
var ErrChainExists = errors.New("chain already exists")

// Tables is the subset of an iptables handle the Manager drives.
// *iptables.IPTables from github.com/coreos/go-iptables satisfies it.
type Tables interface {
	NewChain(table, chain string) error
	ClearAndDeleteChain(table, chain string) error
	ChainExists(table, chain string) (bool, error)
	Append(table, chain string, rulespec ...string) error
	Delete(table, chain string, rulespec ...string) error
}

type Manager struct {
	ipt Tables
}

func NewManagerWithTables(ipt Tables) *Manager {
	return &Manager{ipt: ipt}
}

func (m *Manager) NewChain(table Table, chain Chain) error {
	if err := ValidateChainName(chain); err != nil {
		return err
	}
	if chain.Builtin() {
		return fmt.Errorf("cannot create builtin chain %s", chain)
	}

	exists, err := m.ChainExists(table, chain)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("iptables -t %s -N %s: %w", table, chain, ErrChainExists)
	}

	if err := m.ipt.NewChain(string(table), string(chain)); err != nil {
		return fmt.Errorf("iptables -t %s -N %s failed: %w", table, chain, err)
	}
	return nil
}

// DeleteChain flushes and then deletes a user chain.
func (m *Manager) DeleteChain(table Table, chain Chain) error {
	if chain.Builtin() {
		return fmt.Errorf("cannot delete builtin chain %s", chain)
	}

	if err := m.ipt.ClearAndDeleteChain(string(table), string(chain)); err != nil {
		return fmt.Errorf("iptables -t %s -F/-X %s failed: %w", table, chain, err)
	}
	return nil
}

func (m *Manager) ChainExists(table Table, chain Chain) (bool, error) {
	exists, err := m.ipt.ChainExists(string(table), string(chain))
	if err != nil {
		return false, fmt.Errorf("failed to look up chain %s in table %s: %w", chain, table, err)
	}
	return exists, nil
}

func (m *Manager) AddRule(rule *Rule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}

	if err := m.ipt.Append(string(rule.Table), string(rule.Chain), rule.Spec()...); err != nil {
		return fmt.Errorf("failed to apply rule %s: %w", rule.String(), err)
	}
	return nil
}

func (m *Manager) DeleteRule(rule *Rule) error {
	if err := m.ipt.Delete(string(rule.Table), string(rule.Chain), rule.Spec()...); err != nil {
		return fmt.Errorf("failed to remove rule %s: %w", rule.String(), err)
	}
	return nil
}
