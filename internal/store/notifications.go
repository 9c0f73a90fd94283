// Package store provides the ephemeral notification list.
package store

import (
	"fmt"

	"github.com/planhub/core/internal/models"
	"github.com/planhub/core/internal/uuid"
)

// NotifySubscriber receives the live notification list after each change.
type NotifySubscriber func([]models.Notification)

type notifSubscription struct {
	id int
	fn NotifySubscriber
}

// Notify adds a notification and schedules its expiry after the
// configured TTL. The created notification is returned.
func (s *Store) Notify(typ models.NotificationType, title, message string, priority models.NotificationPriority) models.Notification {
	notification := models.Notification{
		ID:        models.UUID(uuid.New()),
		Type:      typ,
		Title:     title,
		Message:   message,
		Priority:  priority,
		Timestamp: s.clock.Now(),
	}

	s.mu.Lock()
	s.notifications = append(s.notifications, notification)
	subs := s.notifSubscribersLocked()
	list := s.notificationsLocked()
	schedule := !s.closed
	if schedule {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	s.dispatchNotifications(subs, list)
	if schedule {
		go s.expireAfter(notification.ID)
	}
	return notification
}

// Dismiss removes a notification before its expiry. It reports whether
// the notification was still present.
func (s *Store) Dismiss(id models.UUID) bool {
	s.mu.Lock()
	index := -1
	for i, n := range s.notifications {
		if n.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		s.mu.Unlock()
		return false
	}
	s.notifications = append(s.notifications[:index], s.notifications[index+1:]...)
	subs := s.notifSubscribersLocked()
	list := s.notificationsLocked()
	s.mu.Unlock()

	s.dispatchNotifications(subs, list)
	return true
}

// Notifications returns a copy of the live notification list.
func (s *Store) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notificationsLocked()
}

// SubscribeNotifications registers fn for notification list changes and
// returns its unsubscribe function.
func (s *Store) SubscribeNotifications(fn NotifySubscriber) func() {
	s.mu.Lock()
	s.nextNotifSub++
	sub := &notifSubscription{id: s.nextNotifSub, fn: fn}
	s.notifSubs = append(s.notifSubscribersLocked(), sub)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		next := make([]*notifSubscription, 0, len(s.notifSubs))
		for _, existing := range s.notifSubs {
			if existing.id != sub.id {
				next = append(next, existing)
			}
		}
		s.notifSubs = next
	}
}

// expireAfter waits the TTL on the store clock, then dismisses.
func (s *Store) expireAfter(id models.UUID) {
	defer s.wg.Done()
	timer := s.clock.NewTimer(s.ttl)
	select {
	case <-timer.C():
		s.Dismiss(id)
	case <-s.stopCh:
		timer.Stop()
	}
}

func (s *Store) notificationsLocked() []models.Notification {
	return append([]models.Notification(nil), s.notifications...)
}

func (s *Store) notifSubscribersLocked() []*notifSubscription {
	return append([]*notifSubscription(nil), s.notifSubs...)
}

func (s *Store) dispatchNotifications(subs []*notifSubscription, list []models.Notification) {
	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("notification subscriber panicked", fmt.Errorf("%v", r))
				}
			}()
			sub.fn(list)
		}()
	}
}
