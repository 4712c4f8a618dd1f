package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/repository"
)

// NotificationService fans domain events out to interested parties. Every
// delivery is best-effort with at-most-once semantics: failures are logged
// and swallowed, never retried, never surfaced to the operation that
// produced the event.
type NotificationService struct {
	dispatcher  events.Dispatcher
	users       repository.UserRepository
	staff       repository.StaffRepository
	technicians repository.TechnicianRepository
	logger      *zap.Logger
	cfg         config.NotificationConfig
	httpClient  *http.Client
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, users repository.UserRepository, staff repository.StaffRepository, technicians repository.TechnicianRepository, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher:  dispatcher,
		users:       users,
		staff:       staff,
		technicians: technicians,
		logger:      logger,
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout()},
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventInterventionCreated, n.handleInterventionCreated)
	n.dispatcher.Subscribe(events.EventInterventionStatusChanged, n.handleInterventionStatusChanged)
	n.dispatcher.Subscribe(events.EventAppointmentStatusChanged, n.handleAppointmentStatusChanged)
	n.dispatcher.Subscribe(events.EventEvaluationReceived, n.handleEvaluationReceived)
}

// NotifyInterventionCreated goes to the assigned technician and the client.
func (n *NotificationService) handleInterventionCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.InterventionCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	recipients := []string{}
	if email := n.clientEmail(ctx, payload.ClientID); email != "" {
		recipients = append(recipients, email)
	}
	if payload.TechnicianID != nil {
		if email := n.technicianEmail(ctx, *payload.TechnicianID); email != "" {
			recipients = append(recipients, email)
		}
	}
	n.deliver(ctx, event, recipients)
	return nil
}

// NotifyInterventionStatusChanged goes to the client and all staff members.
func (n *NotificationService) handleInterventionStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.InterventionStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	recipients := []string{}
	if email := n.clientEmail(ctx, payload.ClientID); email != "" {
		recipients = append(recipients, email)
	}
	recipients = append(recipients, n.staffEmails(ctx)...)
	n.deliver(ctx, event, recipients)
	return nil
}

func (n *NotificationService) handleAppointmentStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AppointmentStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	recipients := []string{}
	if email := n.clientEmail(ctx, payload.ClientID); email != "" {
		recipients = append(recipients, email)
	}
	n.deliver(ctx, event, recipients)
	return nil
}

func (n *NotificationService) handleEvaluationReceived(ctx context.Context, event events.Event) error {
	n.deliver(ctx, event, n.staffEmails(ctx))
	return nil
}

func (n *NotificationService) clientEmail(ctx context.Context, clientID string) string {
	if n.users == nil {
		return ""
	}
	user, err := n.users.GetByID(ctx, clientID)
	if err != nil {
		n.logger.Debug("client lookup for notification failed", zap.String("client_id", clientID), zap.Error(err))
		return ""
	}
	return user.Email
}

func (n *NotificationService) technicianEmail(ctx context.Context, technicianID string) string {
	if n.technicians == nil {
		return ""
	}
	tech, err := n.technicians.GetByID(ctx, technicianID)
	if err != nil {
		n.logger.Debug("technician lookup for notification failed", zap.String("technician_id", technicianID), zap.Error(err))
		return ""
	}
	return tech.Email
}

func (n *NotificationService) staffEmails(ctx context.Context) []string {
	if n.staff == nil {
		return nil
	}
	members, err := n.staff.ListActive(ctx)
	if err != nil {
		n.logger.Debug("staff lookup for notification failed", zap.Error(err))
		return nil
	}
	emails := make([]string, 0, len(members))
	for _, member := range members {
		emails = append(emails, member.Email)
	}
	return emails
}

// deliver posts the event to the configured webhook. Without a webhook the
// notification is only logged.
func (n *NotificationService) deliver(ctx context.Context, event events.Event, recipients []string) {
	n.logger.Info("notification",
		zap.String("event_type", string(event.Type)),
		zap.Int("recipients", len(recipients)),
		zap.Any("payload", event.Payload))

	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	body, err := json.Marshal(map[string]any{
		"event":      event,
		"recipients": recipients,
	})
	if err != nil {
		n.logger.Warn("notification payload marshal failed", zap.Error(err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("notification request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("notification webhook unreachable", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.Warn("notification webhook rejected event",
			zap.String("event_type", string(event.Type)),
			zap.Int("status", resp.StatusCode))
	}
}
