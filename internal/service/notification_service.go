package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/events"
	appmail "github.com/weaveui/dataset-manager/internal/mail"
)

// NotificationService reacts to domain events: it mails decision receipts to creators
// and logs the rest of the outreach timeline.
type NotificationService struct {
	dispatcher events.Dispatcher
	mailer     appmail.Mailer
	composer   *appmail.Composer
	templates  *appmail.Templates
	sender     config.SenderConfig
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, mailer appmail.Mailer, composer *appmail.Composer, templates *appmail.Templates, sender config.SenderConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		mailer:     mailer,
		composer:   composer,
		templates:  templates,
		sender:     sender,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventEntryPrepared, n.logEvent)
	n.dispatcher.Subscribe(events.EventConsentRequested, n.logEvent)
	n.dispatcher.Subscribe(events.EventConsentDecided, n.handleConsentDecided)
	n.dispatcher.Subscribe(events.EventImagesDownloaded, n.logEvent)
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("entry_id", event.EntryID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleConsentDecided(ctx context.Context, event events.Event) error {
	_ = n.logEvent(ctx, event)

	payload, ok := event.Payload.(events.ConsentDecidedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if payload.To == "" || n.mailer == nil || n.templates == nil {
		return nil
	}

	subject, text, err := n.templates.Receipt(appmail.ReceiptData{
		Granted:   payload.Granted,
		Scope:     payload.Scope,
		DecidedAt: payload.DecidedAt,
		Sender:    n.sender,
	})
	if err != nil {
		return err
	}
	msg := n.composer.Compose(appmail.KindReceipt, event.EntryID, payload.To, subject, text, "")
	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}
	n.logger.Debug("receipt sent", zap.String("entry_id", event.EntryID), zap.Bool("granted", payload.Granted))
	return nil
}
