package capability

import (
	"fmt"
	"sync"
	"time"

	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/xerror"
)

// Locker is a device which guards hardware configuration behind an
// exclusive lock.
type Locker interface {
	ID() string
	// LockForConfiguration acquires the lock, the returned unlock is safe
	// to call more than once.
	LockForConfiguration() (unlock func(), err error)
}

// WithConfigLock runs fn while holding l's configuration lock. The lock is
// released however fn returns, including by panic.
func WithConfigLock(l Locker, op string, fn func() error) error {
	unlock, err := l.LockForConfiguration()
	if err != nil {
		return camera.CapabilityError(l.ID(), op, fmt.Errorf("%w: %w", camera.ErrConfigLocked, err))
	}
	defer unlock()
	return fn()
}

// ErrOutOfRange is the reason given for a control value the device rejects.
var ErrOutOfRange = xerror.New("value out of range")

// Unsupported is the error for a control the device does not offer.
func Unsupported(device, op string) error {
	return camera.CapabilityError(device, op, camera.ErrUnsupportedCapability)
}

// DeviceLock is a single holder lock with an optional acquire timeout.
type DeviceLock struct {
	sem     chan struct{}
	timeout time.Duration
}

func NewDeviceLock(timeout time.Duration) *DeviceLock {
	return &DeviceLock{sem: make(chan struct{}, 1), timeout: timeout}
}

var errLockTimeout = xerror.New("timed out waiting for configuration lock")

func (l *DeviceLock) Acquire() (func(), error) {
	select {
	case l.sem <- struct{}{}:
	default:
		if l.timeout <= 0 {
			return nil, errLockTimeout
		}
		timer := time.NewTimer(l.timeout)
		defer timer.Stop()
		select {
		case l.sem <- struct{}{}:
		case <-timer.C:
			return nil, errLockTimeout
		}
	}

	var once sync.Once
	return func() { once.Do(func() { <-l.sem }) }, nil
}

// Held reports whether someone currently owns the lock.
func (l *DeviceLock) Held() bool {
	return len(l.sem) == cap(l.sem)
}

// LockTable hands out one DeviceLock per device id so that separate
// handles onto the same camera contend for the same lock.
type LockTable struct {
	mu      sync.Mutex
	timeout time.Duration
	locks   map[string]*DeviceLock
}

func NewLockTable(timeout time.Duration) *LockTable {
	return &LockTable{timeout: timeout, locks: map[string]*DeviceLock{}}
}

func (t *LockTable) For(id string) *DeviceLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[id]
	if !ok {
		l = NewDeviceLock(t.timeout)
		t.locks[id] = l
	}
	return l
}
