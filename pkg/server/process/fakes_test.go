package process

import (
	"sync"
	"time"

	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/database/models"
)

type fakeWriter struct {
	mu     sync.Mutex
	frames []*camera.OwnedFrame
	closed bool
}

func (w *fakeWriter) WriteFrame(device string, f camera.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, camera.CopyFrame(f))
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

func (w *fakeWriter) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

type finished struct {
	uuid      string
	delivered uint64
	dropped   uint64
	failure   error
}

type fakeSessions struct {
	mu       sync.Mutex
	created  []models.Session
	finished []finished
}

func (s *fakeSessions) Create(session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, *session)
	return nil
}

func (s *fakeSessions) Finish(uuid string, _ time.Time, delivered, dropped uint64, failure error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, finished{uuid, delivered, dropped, failure})
	return nil
}

func (s *fakeSessions) snapshot() ([]models.Session, []finished) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Session(nil), s.created...), append([]finished(nil), s.finished...)
}

type switchSchedule struct {
	mu sync.Mutex
	on bool
}

func (s *switchSchedule) IsOn(time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

func (s *switchSchedule) set(on bool) {
	s.mu.Lock()
	s.on = on
	s.mu.Unlock()
}
