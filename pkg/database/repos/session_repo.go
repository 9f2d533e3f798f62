package repos

import (
	"time"

	"github.com/tauraamui/camerastream/pkg/database/dbconn"
	"github.com/tauraamui/camerastream/pkg/database/models"
	"github.com/tauraamui/xerror"
)

type SessionRepository struct {
	DB dbconn.GormWrapper
}

func (r *SessionRepository) Create(session *models.Session) error {
	return r.DB.Create(session).Error()
}

// Finish stamps the end of the session with its final counts.
func (r *SessionRepository) Finish(uuid string, endedAt time.Time, delivered, dropped uint64, failure error) error {
	fields := map[string]interface{}{
		"ended_at":  endedAt,
		"delivered": delivered,
		"dropped":   dropped,
	}
	if failure != nil {
		fields["failure"] = failure.Error()
	}
	if err := r.DB.Model(&models.Session{}).Where("uuid = ?", uuid).Updates(fields).Error(); err != nil {
		return xerror.Errorf("unable to finish session %s: %w", uuid, err)
	}
	return nil
}

func (r *SessionRepository) FindByUUID(uuid string) (models.Session, error) {
	session := models.Session{}
	if err := r.DB.Where("uuid = ?", uuid).First(&session).Error(); err != nil {
		return session, xerror.Errorf("session of uuid %s not found", uuid)
	}

	return session, nil
}

// Recent lists the latest sessions, newest first.
func (r *SessionRepository) Recent(limit int) ([]models.Session, error) {
	sessions := []models.Session{}
	if err := r.DB.Order("started_at desc").Limit(limit).Find(&sessions).Error(); err != nil {
		return nil, xerror.Errorf("unable to list sessions: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) ForCamera(camera string) ([]models.Session, error) {
	sessions := []models.Session{}
	if err := r.DB.Where("camera = ?", camera).Order("started_at desc").Find(&sessions).Error(); err != nil {
		return nil, xerror.Errorf("unable to list sessions of camera %s: %w", camera, err)
	}
	return sessions, nil
}
