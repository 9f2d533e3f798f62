package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func init() {
	registerForAutomigration(&Session{})
}

// Session is one capture run of a configured camera, from start to stop.
type Session struct {
	gorm.Model
	UUID        string `gorm:"uniqueIndex"`
	Camera      string
	DeviceID    string
	Backend     string
	PixelFormat string
	Width       uint32
	Height      uint32
	FrameRate   string
	RecordPath  string
	StartedAt   time.Time
	EndedAt     *time.Time
	Delivered   uint64
	Dropped     uint64
	Failure     string
}

// BeforeCreate keeps a stream's session id when one was set.
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if len(s.UUID) == 0 {
		s.UUID = uuid.NewString()
	}
	return nil
}

func (s Session) Finished() bool { return s.EndedAt != nil }

func (s Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}
