package camera

// State is a stream's position in its lifecycle.
type State uint8

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Stream is a capture session for one device. A stream moves from Idle to
// Running on Start and to Stopped on Stop, Close or a fatal backend
// failure. Stopped streams never run again, open a new one instead.
type Stream interface {
	// ID is unique per opened session.
	ID() string
	Device() string
	Config() StreamConfig
	State() State
	// Start registers handler and begins delivery. The handler runs on a
	// backend goroutine, once per frame, in capture order, never
	// concurrently with itself. It must not call Stop or Close.
	Start(handler FrameHandler) error
	// Stop halts capture and returns once no handler call is running or
	// will run. Stopping an Idle or Stopped stream does nothing.
	Stop() error
	// Close stops the stream if needed and releases backend resources.
	Close() error
}

// StreamStats counts frames seen by a stream.
type StreamStats struct {
	Delivered uint64
	Dropped   uint64
}

// StatsReporter is implemented by streams which track delivery counts.
type StatsReporter interface {
	Stats() StreamStats
}
