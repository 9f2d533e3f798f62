package config

import (
	"github.com/tauraamui/camerastream/internal/config"
	"github.com/tauraamui/camerastream/pkg/configdef"
)

type Resolver interface {
	configdef.Resolver
}

func DefaultResolver() Resolver {
	return config.DefaultResolver()
}
