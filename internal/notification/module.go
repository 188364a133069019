// Package notification delivers SFR notifications stored in the outbox.
// It subscribes to outbox-due events published by the scheduler worker, so the
// lifecycle engine never talks to email providers directly.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"sfr_ops_backend/internal/email"
	"sfr_ops_backend/internal/events"
	notificationoutbox "sfr_ops_backend/internal/notification/outbox"
	"sfr_ops_backend/platform/config"
	"sfr_ops_backend/platform/logger"
	"sfr_ops_backend/platform/metrics"

	"github.com/google/uuid"
)

const (
	invalidOutboxPayloadPrefix = "invalid payload: "
	maxOutboxRetryAttempts     = 5
	outboxRetryBaseDelay       = time.Minute
	outboxRetryMaxDelay        = 60 * time.Minute
)

// OutboxStore is the part of the outbox repository the dispatcher needs.
type OutboxStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (notificationoutbox.Record, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error
}

// RecipientResolver finds the address of a request's ground handler.
type RecipientResolver interface {
	HandlingAgentEmail(ctx context.Context, requestID int64) (string, error)
}

// Module handles notification delivery.
type Module struct {
	sender     email.Sender
	cfg        config.EmailConfig
	outbox     OutboxStore
	recipients RecipientResolver
	metrics    *metrics.Registry
	log        *logger.Logger
	now        func() time.Time
}

// New creates a new notification module.
func New(sender email.Sender, cfg config.EmailConfig, m *metrics.Registry, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Module{
		sender:  sender,
		cfg:     cfg,
		metrics: m,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetNotificationOutbox injects the notification outbox repository.
func (m *Module) SetNotificationOutbox(store OutboxStore) {
	m.outbox = store
}

// SetRecipientResolver injects the ground handler address lookup.
func (m *Module) SetRecipientResolver(r RecipientResolver) {
	m.recipients = r
}

// RegisterHandlers subscribes the module to the events it handles.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), m)
}

// Handle implements events.Handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.NotificationOutboxDue:
		return m.handleNotificationOutboxDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleNotificationOutboxDue(ctx context.Context, e events.NotificationOutboxDue) error {
	if m.outbox == nil {
		m.log.Debug("notification outbox repository not configured; skipping outbox due event", "outboxId", e.OutboxID, "sfr_id", e.RequestID)
		return nil
	}
	rec, process, err := m.prepareOutboxRecord(ctx, e.OutboxID)
	if err != nil || !process {
		if err != nil {
			m.log.Error("failed to prepare outbox record", "outboxId", e.OutboxID, "error", err)
		}
		return err
	}

	var evt events.SFRNotification
	if err := json.Unmarshal(rec.Payload, &evt); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, invalidOutboxPayloadPrefix+err.Error())
		m.metrics.ObserveDispatch("failed")
		m.log.Warn("outbox payload could not be decoded", "outboxId", rec.ID.String(), "error", err)
		return nil
	}
	if !knownKind(evt.Kind) {
		m.markOutboxUnsupported(ctx, rec)
		return nil
	}

	if err := m.deliver(ctx, evt); err != nil {
		m.handleOutboxDeliveryError(ctx, rec, err)
		return nil
	}
	if err := m.outbox.MarkSucceeded(ctx, rec.ID); err != nil {
		return err
	}
	m.metrics.ObserveDispatch("succeeded")
	m.log.Info("outbox record processed successfully", "outboxId", rec.ID.String(), "kind", rec.Kind, "sfr_id", evt.RequestID)
	return nil
}

func (m *Module) prepareOutboxRecord(ctx context.Context, outboxID uuid.UUID) (notificationoutbox.Record, bool, error) {
	rec, err := m.outbox.GetByID(ctx, outboxID)
	if err != nil {
		return notificationoutbox.Record{}, false, err
	}
	if rec.Status == notificationoutbox.StatusSucceeded || rec.Status == notificationoutbox.StatusFailed {
		m.log.Debug("outbox record already finished; skipping", "outboxId", rec.ID.String(), "status", rec.Status)
		return rec, false, nil
	}
	if err := m.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return notificationoutbox.Record{}, false, err
	}
	return rec, true, nil
}

func (m *Module) markOutboxUnsupported(ctx context.Context, rec notificationoutbox.Record) {
	_ = m.outbox.MarkFailed(ctx, rec.ID, "unsupported kind: "+rec.Kind)
	m.metrics.ObserveDispatch("unsupported")
	m.log.Warn("outbox record has unsupported kind", "outboxId", rec.ID.String(), "kind", rec.Kind)
}

func (m *Module) handleOutboxDeliveryError(ctx context.Context, rec notificationoutbox.Record, deliveryErr error) {
	attempt := rec.Attempts + 1
	if attempt >= maxOutboxRetryAttempts {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.metrics.ObserveDispatch("failed")
		m.log.Warn("notification outbox exhausted retries",
			"outboxId", rec.ID.String(),
			"kind", rec.Kind,
			"attempt", attempt,
			"maxAttempts", maxOutboxRetryAttempts,
			"error", deliveryErr,
		)
		return
	}

	retryAt := m.now().Add(computeOutboxRetryDelay(attempt))
	if err := m.outbox.ScheduleRetry(ctx, rec.ID, retryAt, deliveryErr.Error()); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.metrics.ObserveDispatch("failed")
		m.log.Error("notification outbox retry scheduling failed; marked failed",
			"outboxId", rec.ID.String(),
			"attempt", attempt,
			"error", err,
		)
		return
	}

	m.metrics.ObserveDispatch("retry")
	m.log.Warn("notification outbox scheduled retry",
		"outboxId", rec.ID.String(),
		"kind", rec.Kind,
		"attempt", attempt,
		"maxAttempts", maxOutboxRetryAttempts,
		"retryAt", retryAt,
		"error", deliveryErr,
	)
}

func computeOutboxRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := outboxRetryBaseDelay << (attempt - 1)
	if delay > outboxRetryMaxDelay {
		return outboxRetryMaxDelay
	}
	return delay
}

// deliver emails every audience that has an address. The client and fuel team
// are reached through their own portals, so they are only logged here.
func (m *Module) deliver(ctx context.Context, evt events.SFRNotification) error {
	recipients, err := m.resolveRecipients(ctx, evt)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		m.log.Debug("notification has no email recipients", "sfr_id", evt.RequestID, "kind", evt.Kind, "audiences", evt.Audiences)
		return nil
	}

	data := buildNotificationEmail(evt)
	var errs []error
	for _, to := range recipients {
		if err := m.sender.SendNotificationEmail(ctx, to, data); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Module) resolveRecipients(ctx context.Context, evt events.SFRNotification) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	add := func(addr string) {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return
		}
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}

	for _, a := range evt.Audiences {
		switch a {
		case events.AudienceStaff:
			if m.cfg != nil {
				add(m.cfg.GetStaffNotificationEmail())
			}
		case events.AudienceGroundHandler:
			if m.recipients == nil {
				continue
			}
			addr, err := m.recipients.HandlingAgentEmail(ctx, evt.RequestID)
			if err != nil {
				return nil, err
			}
			add(addr)
		default:
			m.log.Debug("audience has no email channel", "sfr_id", evt.RequestID, "audience", a)
		}
	}
	return out, nil
}

func knownKind(k events.NotificationKind) bool {
	switch k {
	case events.KindAmendment, events.KindCreated, events.KindCancelled,
		events.KindStatusChanged, events.KindGHReconfirmationRequired:
		return true
	}
	return false
}

func buildNotificationEmail(evt events.SFRNotification) email.NotificationEmail {
	data := email.NotificationEmail{
		Kind:      string(evt.Kind),
		RequestID: evt.RequestID,
		Callsign:  evt.Callsign,
	}
	if evt.Status != nil {
		data.OldStatus = evt.Status.Old
		data.NewStatus = evt.Status.New
	}

	keys := make([]string, 0, len(evt.ChangedFields))
	for k := range evt.ChangedFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c := evt.ChangedFields[k]
		data.Fields = append(data.Fields, email.FieldRow{Label: fieldLabel(k), Old: c.Old, New: c.New})
	}

	for _, s := range evt.ChangedServices {
		data.Services = append(data.Services, email.ServiceRow{
			Name:      s.Name,
			Direction: strings.ToLower(s.Direction),
			Change:    s.ChangeType,
			Old:       describeDetail(s.Old),
			New:       describeDetail(s.New),
		})
	}
	return data
}

func fieldLabel(key string) string {
	label := strings.ReplaceAll(strings.ReplaceAll(key, ".", ": "), "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func describeDetail(d *events.ServiceDetail) string {
	if d == nil {
		return ""
	}
	var parts []string
	if d.Quantity != nil {
		q := strconv.FormatFloat(*d.Quantity, 'f', -1, 64)
		parts = append(parts, strings.TrimSpace(q+" "+d.QuantityUnit))
	}
	if d.FreeText != "" {
		parts = append(parts, d.FreeText)
	}
	if d.Note != "" {
		parts = append(parts, d.Note)
	}
	return strings.Join(parts, ", ")
}
