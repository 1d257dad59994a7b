package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shinyyama/barter-backend/internal/model"
	"github.com/shinyyama/barter-backend/internal/repository"
	"github.com/sirupsen/logrus"
)

// NotificationRefs links a notification to the records it is about.
type NotificationRefs struct {
	ItemID  *uint64
	MatchID *uint64
	BidID   *uint64
}

type NotificationService interface {
	Notify(ctx context.Context, userUID, typ, title, body string, refs NotificationRefs) (*model.Notification, error)
	// Deliver is Notify with bounded retries. A row may be written more than once.
	Deliver(ctx context.Context, userUID, typ, title, body string, refs NotificationRefs) (*model.Notification, error)
	List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	MarkRead(ctx context.Context, userUID string, id uint64) error
	MarkAllRead(ctx context.Context, userUID string) error
}

type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

type notificationService struct {
	repo  repository.NotificationRepository
	retry RetryPolicy
	log   logrus.FieldLogger
}

func NewNotificationService(repo repository.NotificationRepository, retry RetryPolicy, log logrus.FieldLogger) NotificationService {
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	return &notificationService{repo: repo, retry: retry, log: log}
}

func (s *notificationService) Notify(ctx context.Context, userUID, typ, title, body string, refs NotificationRefs) (*model.Notification, error) {
	userUID = strings.TrimSpace(userUID)
	if userUID == "" {
		return nil, validationf("recipient is required")
	}
	if !model.ValidNotificationType(typ) {
		return nil, validationf("unknown notification type %q", typ)
	}
	n := &model.Notification{
		UserUID: userUID,
		Type:    typ,
		Title:   title,
		Body:    body,
		ItemID:  refs.ItemID,
		MatchID: refs.MatchID,
		BidID:   refs.BidID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *notificationService) Deliver(ctx context.Context, userUID, typ, title, body string, refs NotificationRefs) (*model.Notification, error) {
	var errs *multierror.Error
retry:
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		n, err := s.Notify(ctx, userUID, typ, title, body, refs)
		if err == nil {
			return n, nil
		}
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		errs = multierror.Append(errs, fmt.Errorf("attempt %d: %w", attempt, err))
		if attempt == s.retry.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			errs = multierror.Append(errs, ctx.Err())
			break retry
		case <-time.After(s.retry.Backoff * time.Duration(attempt)):
		}
	}
	s.log.WithFields(logrus.Fields{
		"recipient": userUID,
		"type":      typ,
		"attempts":  s.retry.Attempts,
	}).WithError(errs).Warn("notification delivery failed")
	return nil, fmt.Errorf("%w: deliver notification: %w", ErrUpstream, errs.ErrorOrNil())
}

func (s *notificationService) List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userUID == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userUID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userUID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userUID string, id uint64) error {
	if userUID == "" || id == 0 {
		return validationf("notification id is required")
	}
	if _, err := s.repo.MarkRead(ctx, userUID, id); err != nil {
		return storeErr(err, "notification")
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userUID string) error {
	if userUID == "" {
		return nil
	}
	return s.repo.MarkAllRead(ctx, userUID)
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}
