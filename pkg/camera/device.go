package camera

// Manager is the discovery entry point of a backend.
type Manager interface {
	// EnumerateDevices lists the devices currently visible to the backend.
	EnumerateDevices() (*Seq[Device], error)
	// DefaultDevice resolves the platform's primary camera. ok is false,
	// with a nil error, when there is none.
	DefaultDevice() (dev Device, ok bool, err error)
}

// Device identifies one camera. ID is the only reliable equality key,
// two enumerations may hand out distinct values for the same camera.
type Device interface {
	ID() string
	Name() string
	SupportedFormats() (*Seq[FormatDescriptor], error)
	// Open validates cfg against SupportedFormats and returns an Idle stream.
	Open(cfg StreamConfig) (Stream, error)
}

// FindDevice walks m's enumeration for id. A missing device is not an error.
func FindDevice(m Manager, id string) (Device, bool, error) {
	devices, err := m.EnumerateDevices()
	if err != nil {
		return nil, false, err
	}
	dev, ok := Find(devices, func(d Device) bool { return d.ID() == id })
	return dev, ok, nil
}

// MatchConfig finds the descriptor cfg was built from. Pixel format and
// size must match exactly and the frame rate must lie inside one of that
// descriptor's ranges. Backends call this from Open.
func MatchConfig(device string, formats *Seq[FormatDescriptor], cfg StreamConfig) (FormatDescriptor, error) {
	for d := range formats.All() {
		if d.Matches(cfg) && d.Supports(cfg.FrameRate) {
			return d, nil
		}
	}
	return FormatDescriptor{}, UnsupportedConfigError(device, cfg)
}
