package config

import "github.com/tauraamui/camerastream/pkg/configdef"

type defaultSettingKey uint

const (
	BACKEND       defaultSettingKey = 0x0
	CAMERAS       defaultSettingKey = 0x1
	STATSINTERVAL defaultSettingKey = 0x2
)

var defaultSettings = map[defaultSettingKey]interface{}{
	BACKEND:       "mock",
	CAMERAS:       []configdef.Camera{},
	STATSINTERVAL: 10,
}
