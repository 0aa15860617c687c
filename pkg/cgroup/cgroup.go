// Package cgroup manages net_cls control groups used to tag the sockets of
// a process with a numeric class id that iptables can match on with
// "-m cgroup --cgroup <classid>".
package cgroup

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const DefaultRoot = "/sys/fs/cgroup/net_cls"

const (
	classIDFile = "net_cls.classid"
	procsFile   = "cgroup.procs"
)

// removeDir and writeFile touch cgroupfs. Tests override them.
var (
	removeDir = os.Remove
	writeFile = os.WriteFile
)

type Hierarchy struct {
	root string
}

func New(root string) *Hierarchy {
	if root == "" {
		root = DefaultRoot
	}
	return &Hierarchy{root: filepath.Clean(root)}
}

func (h *Hierarchy) Root() string {
	return h.root
}

func (h *Hierarchy) Path(name string) string {
	return filepath.Join(h.root, name)
}

// Available reports whether the net_cls hierarchy is mounted at the root.
func (h *Hierarchy) Available() error {
	info, err := os.Stat(h.root)
	if err != nil {
		return fmt.Errorf("net_cls hierarchy %s: %w", h.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("net_cls hierarchy %s: not a directory", h.root)
	}
	return nil
}

// Create makes the group if absent and tags it with classID.
func (h *Hierarchy) Create(name string, classID uint32) error {
	if err := validateName(name); err != nil {
		return err
	}

	dir := h.Path(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cgroup %s: %w", dir, err)
	}

	if err := writeValue(filepath.Join(dir, classIDFile), strconv.FormatUint(uint64(classID), 10)); err != nil {
		return fmt.Errorf("failed to set classid %d on %s: %w", classID, dir, err)
	}
	return nil
}

func (h *Hierarchy) ClassID(name string) (uint32, error) {
	data, err := os.ReadFile(filepath.Join(h.Path(name), classIDFile))
	if err != nil {
		return 0, fmt.Errorf("failed to read classid of %s: %w", name, err)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed classid in %s: %w", name, err)
	}
	return uint32(id), nil
}

// Enroll moves pid into the group.
func (h *Hierarchy) Enroll(name string, pid int) error {
	if err := validateName(name); err != nil {
		return err
	}
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}

	if err := writeValue(filepath.Join(h.Path(name), procsFile), strconv.Itoa(pid)); err != nil {
		return fmt.Errorf("failed to move pid %d to cgroup %s: %w", pid, name, err)
	}
	return nil
}

// Release moves pid back to the root of the hierarchy. A process that has
// already exited is not an error.
func (h *Hierarchy) Release(pid int) error {
	err := writeValue(filepath.Join(h.root, procsFile), strconv.Itoa(pid))
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("failed to move pid %d to root cgroup: %w", pid, err)
	}
	return nil
}

func (h *Hierarchy) Members(name string) ([]int, error) {
	data, err := os.ReadFile(filepath.Join(h.Path(name), procsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read members of %s: %w", name, err)
	}

	var pids []int
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("malformed pid %q in %s: %w", line, name, err)
		}
		pids = append(pids, pid)
	}
	return pids, sc.Err()
}

// Remove deletes the group. Processes still inside it, such as descendants
// that outlived the enrolled process, are moved back to the root first.
func (h *Hierarchy) Remove(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	members, err := h.Members(name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	for _, pid := range members {
		if err := h.Release(pid); err != nil {
			return err
		}
	}

	if err := removeDir(h.Path(name)); err != nil {
		return fmt.Errorf("failed to remove cgroup %s: %w", name, err)
	}
	return nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return fmt.Errorf("invalid cgroup name %q", name)
	}
	return nil
}

func writeValue(path, value string) error {
	return writeFile(path, []byte(value+"\n"), 0o644)
}
