// Package config exposes the daemon's configuration file lifecycle.
package config

import (
	"github.com/tauraamui/camerastream/internal/config"
	"github.com/tauraamui/camerastream/pkg/configdef"
)

type CreateResolver interface {
	configdef.CreateResolver
}

func DefaultCreateResolver() CreateResolver {
	return config.DefaultCreateResolver()
}
