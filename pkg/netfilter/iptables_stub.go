//go:build !linux

package netfilter

import "fmt"

func NewManager() (*Manager, error) {
	return nil, fmt.Errorf("netfilter is only supported on Linux")
}
