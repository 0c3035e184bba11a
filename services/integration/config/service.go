package config

import "github.com/stackpilot/stackpilot/pkg/koanf"

type ServiceConfig struct {
	Postgres koanf.Postgres   `json:"postgres,omitempty" koanf:"postgres"`
	Http     koanf.HttpServer `json:"http,omitempty" koanf:"http"`

	// EncryptionKey is the hex-encoded AES-256 master key. The service
	// refuses to start without a valid one.
	EncryptionKey string `json:"encryption_key,omitempty" koanf:"encryption_key"`
}
