package supervisor

import (
	"fmt"
	"net"
	"time"

	"nozomi-tproxy/internal/config"
	"nozomi-tproxy/internal/redirect"
	"nozomi-tproxy/pkg/cgroup"
)

const AppName = "nozomi"

type Config struct {
	Port         uint32           `mapstructure:"port" json:"port" yaml:"port"`
	UseTProxy    bool             `mapstructure:"use_tproxy" json:"use_tproxy" yaml:"use_tproxy"`
	PID          int              `mapstructure:"pid" json:"pid" yaml:"pid"`
	Prefix       string           `mapstructure:"prefix" json:"prefix" yaml:"prefix"`
	CgroupRoot   string           `mapstructure:"cgroup_root" json:"cgroup_root" yaml:"cgroup_root"`
	TProxyAddr   string           `mapstructure:"tproxy_addr" json:"tproxy_addr" yaml:"tproxy_addr"`
	PollInterval time.Duration    `mapstructure:"poll_interval" json:"poll_interval" yaml:"poll_interval"`
	DryRun       bool             `mapstructure:"dry_run" json:"dry_run" yaml:"dry_run"`
	Log          config.LogConfig `mapstructure:"log" json:"log" yaml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		Port:         1081,
		Prefix:       redirect.DefaultPrefix,
		CgroupRoot:   cgroup.DefaultRoot,
		TProxyAddr:   redirect.DefaultTProxyAddr,
		PollInterval: 100 * time.Millisecond,
		Log:          config.DefaultLogConfig(),
	}
}

func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if err := config.Load(AppName, configFile, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.PID < 0 {
		return fmt.Errorf("pid must not be negative")
	}
	if c.Prefix == "" {
		return fmt.Errorf("prefix is required")
	}
	if c.CgroupRoot == "" {
		return fmt.Errorf("cgroup root is required")
	}
	if ip := net.ParseIP(c.TProxyAddr); ip == nil || ip.To4() == nil {
		return fmt.Errorf("tproxy address must be an IPv4 address: %q", c.TProxyAddr)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return c.Log.Validate()
}

func (c *Config) GetLog() *config.LogConfig {
	return &c.Log
}

// Key returns the session key for pid.
func (c *Config) Key(pid int) redirect.Key {
	k := redirect.NewKey(c.Prefix, pid, c.Port)
	k.TProxyAddr = c.TProxyAddr
	return k
}

func (c *Config) Strategy() redirect.Strategy {
	return redirect.StrategyFor(c.UseTProxy)
}
