//go:build !linux

package route

import "errors"

var errUnsupported = errors.New("policy routing is only supported on Linux")

type Manager struct{}

func New() (*Manager, error) {
	return nil, errUnsupported
}

func (m *Manager) Close() {}

func (m *Manager) AddMarkRule(mark uint32, table int) error    { return errUnsupported }
func (m *Manager) DeleteMarkRule(mark uint32, table int) error { return errUnsupported }
func (m *Manager) AddLocalRoute(table int) error                { return errUnsupported }
func (m *Manager) DeleteLocalRoute(table int) error             { return errUnsupported }
