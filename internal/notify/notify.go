package notify

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bustrack/internal/engine"
	"bustrack/internal/models"
)

// Service is the push/notify channel: it lands each message in the
// recipient's persisted inbox and mirrors it onto the live-update channel
// so connected viewers see new notifications without polling.
type Service struct {
	db   *gorm.DB
	live engine.LivePublisher
}

func New(db *gorm.DB, live engine.LivePublisher) *Service {
	return &Service{db: db, live: live}
}

// SendToUser writes the inbox row and pushes a best-effort live event.
func (s *Service) SendToUser(ctx context.Context, userID uint, msg engine.Message) error {
	var metadata []byte
	if msg.Metadata != nil {
		raw, err := json.Marshal(msg.Metadata)
		if err != nil {
			logrus.WithError(err).WithField("recipient_id", userID).
				Warn("Dropping unencodable notification metadata.")
		} else {
			metadata = raw
		}
	}

	notification := models.Notification{
		RecipientID: userID,
		Type:        msg.Type,
		Title:       msg.Title,
		Message:     msg.Body,
		Metadata:    metadata,
		Priority:    msg.Priority,
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("organization_id").First(&user, userID).Error; err == nil {
		s.live.Publish(user.OrganizationID, "notification", map[string]any{
			"notification_id": notification.ID,
			"recipient_id":    userID,
			"type":            msg.Type,
			"title":           msg.Title,
			"priority":        msg.Priority,
		})
	}

	return nil
}
