// Package koanf loads per-service configuration from struct defaults, an
// optional YAML file and prefixed environment variables, in that order.
package koanf

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Provide returns the configuration for the named service. Environment
// variables use the upper-cased service name as prefix and "__" as the
// nesting separator, e.g. INTEGRATION__POSTGRES__HOST.
func Provide[T any](service string, defaultCfg T) T {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultCfg, "koanf"), nil); err != nil {
		log.Fatalf("failed to load default config: %v", err)
	}

	if path := os.Getenv(strings.ToUpper(service) + "__CONFIG_PATH"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			log.Fatalf("failed to load config file %s: %v", path, err)
		}
	}

	prefix := strings.ToUpper(service) + "__"
	err := k.Load(env.Provider(prefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, prefix)), "__", ".")
	}), nil)
	if err != nil {
		log.Fatalf("failed to load env config: %v", err)
	}

	var cfg T
	if err := k.Unmarshal("", &cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}
	return cfg
}

// Postgres is the shared database connection block.
type Postgres struct {
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	DB       string `koanf:"db"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"ssl_mode"`
}

// HttpServer is the shared listen address block.
type HttpServer struct {
	Address string `koanf:"address"`
}

func (p Postgres) Validate() error {
	if p.Host == "" || p.Port == "" || p.DB == "" || p.Username == "" {
		return fmt.Errorf("incomplete postgres config: host=%q port=%q db=%q", p.Host, p.Port, p.DB)
	}
	return nil
}
