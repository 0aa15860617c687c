package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Loader struct {
	v      *viper.Viper
	prefix string
}

func NewLoader(appName string) *Loader {
	v := viper.New()
	prefix := strings.ToUpper(strings.ReplaceAll(appName, "-", "_"))
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	return &Loader{
		v:      v,
		prefix: prefix,
	}
}

func (l *Loader) LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	envMap, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("failed to read env file: %w", err)
	}

	for key, value := range envMap {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}

	return nil
}

// LoadFile reads a yaml or json config file. Dotenv files are exported to
// the process environment instead, where the prefixed keys are picked up.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	if isEnvFile(path) {
		return l.LoadEnvFile(path)
	}

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

func isEnvFile(path string) bool {
	base := filepath.Base(path)
	return base == ".env" || strings.HasSuffix(base, ".env") || strings.HasPrefix(base, ".env.")
}

func (l *Loader) Unmarshal(cfg any) error {
	l.bindEnvs(cfg, "")
	return l.v.Unmarshal(cfg)
}

func (l *Loader) bindEnvs(iface any, prefix string) {
	v := reflect.ValueOf(iface)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		var fullPath string
		if prefix == "" {
			fullPath = tag
		} else {
			fullPath = prefix + "." + tag
		}

		// Only leaves are bound: a bound parent key shadows its children
		// in AllSettings.
		fieldValue := v.Field(i)
		if fieldValue.Kind() == reflect.Struct {
			l.bindEnvs(fieldValue.Addr().Interface(), fullPath)
			continue
		}

		_ = l.v.BindEnv(fullPath)
	}
}

func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}
