// Package notify records user-facing notifications and fans them out to
// optional delivery channels (e-mail, AMQP).
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dan9191/bank-portal/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrNotification marks a failed notification. It never fails the
// operation that triggered it.
var ErrNotification = errors.New("notification failed")

// Store persists notifications
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Channel delivers an already persisted notification somewhere else
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n *models.Notification) error
}

// Emitter appends notifications and hands them to the channels
type Emitter struct {
	store    Store
	rules    Rules
	channels []Channel
	log      *logrus.Logger
}

// NewEmitter creates an emitter; nil rules means DefaultRules
func NewEmitter(store Store, rules Rules, log *logrus.Logger, channels ...Channel) *Emitter {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Emitter{store: store, rules: rules, channels: channels, log: log}
}

// Rules exposes the active rule table
func (e *Emitter) Rules() Rules {
	return e.rules
}

// Emit persists n when the rules enable ev. It returns (nil, nil) for a
// silenced event. A store failure is returned wrapped in ErrNotification;
// channel failures are only logged.
func (e *Emitter) Emit(ctx context.Context, ev Event, n *models.Notification) (*models.Notification, error) {
	if !e.rules.Enabled(ev) {
		e.log.WithField("event", ev).Debug("Notification suppressed by rules")
		return nil, nil
	}
	if n.UserID == 0 || n.Title == "" {
		return nil, fmt.Errorf("%w: notification needs a user and a title", ErrNotification)
	}
	if n.Type == "" {
		n.Type = models.NotificationSystem
	}
	n.IsRead = false

	if err := e.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotification, err)
	}

	for _, ch := range e.channels {
		if err := ch.Deliver(ctx, n); err != nil {
			e.log.WithFields(logrus.Fields{
				"channel":         ch.Name(),
				"notification_id": n.ID,
				"user_id":         n.UserID,
			}).Warnf("Failed to deliver notification: %v", err)
		}
	}

	e.log.WithFields(logrus.Fields{"event": ev, "notification_id": n.ID, "user_id": n.UserID}).Info("Notification created")
	return n, nil
}
