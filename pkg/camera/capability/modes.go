package capability

import (
	"strings"

	"github.com/tauraamui/xerror"
)

type FocusMode uint8

const (
	FocusLocked FocusMode = iota
	FocusAuto
	FocusContinuousAuto
)

type ExposureMode uint8

const (
	ExposureLocked ExposureMode = iota
	ExposureAuto
	ExposureContinuousAuto
	ExposureCustom
)

type WhiteBalanceMode uint8

const (
	WhiteBalanceLocked WhiteBalanceMode = iota
	WhiteBalanceAuto
	WhiteBalanceContinuousAuto
)

type TorchMode uint8

const (
	TorchOff TorchMode = iota
	TorchOn
	TorchAuto
)

var (
	focusModeNames        = []string{"locked", "auto", "continuous_auto"}
	exposureModeNames     = []string{"locked", "auto", "continuous_auto", "custom"}
	whiteBalanceModeNames = []string{"locked", "auto", "continuous_auto"}
	torchModeNames        = []string{"off", "on", "auto"}
)

func nameOf(names []string, i uint8) string {
	if int(i) < len(names) {
		return names[i]
	}
	return "unknown"
}

func parseName(kind string, names []string, s string) (uint8, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return uint8(i), nil
		}
	}
	return 0, xerror.Errorf("unknown %s mode: %q", kind, s)
}

func (m FocusMode) String() string        { return nameOf(focusModeNames, uint8(m)) }
func (m ExposureMode) String() string     { return nameOf(exposureModeNames, uint8(m)) }
func (m WhiteBalanceMode) String() string { return nameOf(whiteBalanceModeNames, uint8(m)) }
func (m TorchMode) String() string        { return nameOf(torchModeNames, uint8(m)) }

func ParseFocusMode(s string) (FocusMode, error) {
	i, err := parseName("focus", focusModeNames, s)
	return FocusMode(i), err
}

func ParseExposureMode(s string) (ExposureMode, error) {
	i, err := parseName("exposure", exposureModeNames, s)
	return ExposureMode(i), err
}

func ParseWhiteBalanceMode(s string) (WhiteBalanceMode, error) {
	i, err := parseName("white balance", whiteBalanceModeNames, s)
	return WhiteBalanceMode(i), err
}

func ParseTorchMode(s string) (TorchMode, error) {
	i, err := parseName("torch", torchModeNames, s)
	return TorchMode(i), err
}
