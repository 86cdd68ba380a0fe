package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bustrack/internal/models"
)

// Audience selects broadcast recipients within an organization.
type Audience string

const (
	AudienceAll     Audience = "ALL"
	AudienceDrivers Audience = "DRIVERS"
	AudienceParents Audience = "PARENTS"
)

func (a Audience) roles() ([]string, error) {
	switch a {
	case AudienceAll:
		return []string{"admin", "driver", "parent"}, nil
	case AudienceDrivers:
		return []string{"driver"}, nil
	case AudienceParents:
		return []string{"parent"}, nil
	default:
		return nil, ErrInvalidAudience
	}
}

// FanoutFailure records one recipient whose delivery failed.
type FanoutFailure struct {
	RecipientID uint   `json:"recipient_id"`
	Reason      string `json:"reason"`
}

// FanoutReport is the out-of-band result of a best-effort fanout: a
// failure for one recipient never aborts delivery to the others and never
// rolls back the operation that triggered the fanout.
type FanoutReport struct {
	CorrelationID string          `json:"correlation_id"`
	Delivered     int             `json:"delivered"`
	Failed        []FanoutFailure `json:"failed,omitempty"`
}

// fanout dispatches messages[i] to recipients[i] with bounded concurrency.
// Duplicate recipients are sent from the same worker slot in submission
// order, preserving per-recipient ordering.
func (e *Engine) fanout(ctx context.Context, recipients []uint, messages []Message) FanoutReport {
	report := FanoutReport{CorrelationID: uuid.NewString()}
	if len(recipients) == 0 {
		return report
	}

	// Group sends per recipient so one goroutine owns each inbox.
	order := make([]uint, 0, len(recipients))
	perRecipient := make(map[uint][]Message, len(recipients))
	for i, id := range recipients {
		if _, seen := perRecipient[id]; !seen {
			order = append(order, id)
		}
		perRecipient[id] = append(perRecipient[id], messages[i])
	}

	sem := make(chan struct{}, e.fanoutWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, id := range order {
		wg.Add(1)
		sem <- struct{}{}
		go func(recipientID uint, queue []Message) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, msg := range queue {
				if err := e.notifier.SendToUser(ctx, recipientID, msg); err != nil {
					logrus.WithError(err).WithFields(logrus.Fields{
						"recipient_id":   recipientID,
						"type":           msg.Type,
						"correlation_id": report.CorrelationID,
					}).Warn("Notification delivery failed; continuing fanout.")
					mu.Lock()
					report.Failed = append(report.Failed, FanoutFailure{
						RecipientID: recipientID,
						Reason:      err.Error(),
					})
					mu.Unlock()
					continue
				}
				mu.Lock()
				report.Delivered++
				mu.Unlock()
			}
		}(id, perRecipient[id])
	}
	wg.Wait()

	return report
}

// Broadcast fans a message out to every matching recipient in the
// organization and returns the delivery report.
func (e *Engine) Broadcast(ctx context.Context, orgID uint, audience Audience, title, body string) (*FanoutReport, error) {
	roles, err := audience.roles()
	if err != nil {
		return nil, err
	}
	users, err := e.store.UsersByRole(ctx, orgID, roles...)
	if err != nil {
		return nil, err
	}

	recipients := make([]uint, len(users))
	messages := make([]Message, len(users))
	for i, u := range users {
		recipients[i] = u.ID
		messages[i] = Message{
			Type:     models.NotifyBroadcast,
			Title:    title,
			Body:     body,
			Metadata: map[string]any{"audience": string(audience)},
		}
	}

	report := e.fanout(ctx, recipients, messages)

	e.live.Publish(orgID, "broadcast", map[string]any{
		"title":    title,
		"audience": string(audience),
	})

	logrus.WithFields(logrus.Fields{
		"org_id":         orgID,
		"audience":       audience,
		"delivered":      report.Delivered,
		"failed":         len(report.Failed),
		"correlation_id": report.CorrelationID,
	}).Info("Broadcast dispatched.")

	return &report, nil
}

// EmergencyAlert delivers a priority-flagged message to every organization
// admin.
func (e *Engine) EmergencyAlert(ctx context.Context, orgID uint, body string) (*FanoutReport, error) {
	admins, err := e.store.UsersByRole(ctx, orgID, "admin")
	if err != nil {
		return nil, err
	}

	recipients := make([]uint, len(admins))
	messages := make([]Message, len(admins))
	for i, u := range admins {
		recipients[i] = u.ID
		messages[i] = Message{
			Type:     models.NotifyEmergency,
			Title:    "EMERGENCY",
			Body:     body,
			Priority: true,
		}
	}

	report := e.fanout(ctx, recipients, messages)

	e.live.Publish(orgID, "emergency", map[string]any{"message": body})

	logrus.WithFields(logrus.Fields{
		"org_id":         orgID,
		"delivered":      report.Delivered,
		"failed":         len(report.Failed),
		"correlation_id": report.CorrelationID,
	}).Warn("Emergency alert dispatched to admins.")

	return &report, nil
}
