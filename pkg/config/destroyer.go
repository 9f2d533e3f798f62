package config

import (
	"github.com/tauraamui/camerastream/internal/config"
	"github.com/tauraamui/camerastream/pkg/configdef"
)

type Destroyer interface {
	configdef.Destroyer
}

func DefaultDestroyer() Destroyer {
	return config.DefaultDestroyer()
}
