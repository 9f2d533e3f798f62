package config

import (
	"github.com/tauraamui/camerastream/internal/config"
	"github.com/tauraamui/camerastream/pkg/configdef"
)

type Creator interface {
	configdef.Creator
}

func DefaultCreator() Creator {
	return config.DefaultCreator()
}
