package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crestlinehotels/onboarding/internal/application/dispatcher"
	"github.com/crestlinehotels/onboarding/internal/application/port"
	"github.com/crestlinehotels/onboarding/internal/domain/entity"
	"github.com/crestlinehotels/onboarding/internal/domain/event"
)

// AddressResolver maps an actor ID to a deliverable address. Hotel properties
// keep this in their own directory; the notifier only needs the lookup.
type AddressResolver func(actorID string) (string, bool)

// EventNotifier subscribes to workflow events and turns the ones people care
// about into outbound messages.
type EventNotifier struct {
	notifier  port.Notifier
	sessions  port.SessionRepository
	resolve   AddressResolver
	hrAddress string
	logger    *zap.Logger
}

// NewEventNotifier creates a new event notifier
func NewEventNotifier(
	notifier port.Notifier,
	sessions port.SessionRepository,
	resolve AddressResolver,
	hrAddress string,
	logger *zap.Logger,
) *EventNotifier {
	return &EventNotifier{
		notifier:  notifier,
		sessions:  sessions,
		resolve:   resolve,
		hrAddress: hrAddress,
		logger:    logger,
	}
}

// RegisterHandlers subscribes the notifier to the events it reacts to
func (n *EventNotifier) RegisterHandlers(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeSessionInitiated, "notify.session_initiated", n.onSessionInitiated)
	d.SubscribeNamed(event.TypePhaseChanged, "notify.phase_changed", n.onPhaseChanged)
	d.SubscribeNamed(event.TypeCorrectionsRequested, "notify.corrections_requested", n.onCorrectionsRequested)
	d.SubscribeNamed(event.TypeSessionExpired, "notify.session_expired", n.onSessionExpired)
	d.SubscribeNamed(event.TypeFormUpdateCompleted, "notify.form_update_completed", n.onFormUpdateCompleted)
}

func (n *EventNotifier) onSessionInitiated(ctx context.Context, evt *event.Event) error {
	addr, ok := n.resolve(evt.EmployeeID)
	if !ok {
		n.logger.Warn("No address for employee, skipping notification",
			zap.String("employee_id", evt.EmployeeID))
		return nil
	}

	return n.notifier.Notify(ctx, port.Notification{
		Type:          string(evt.Type),
		Recipient:     addr,
		RecipientRole: entity.RoleEmployee,
		Subject:       "Welcome! Your onboarding has started",
		Body: fmt.Sprintf(
			"Your onboarding paperwork is ready. Please complete your forms, starting with %s.",
			evt.GetPayloadString("current_step")),
		SessionID: evt.SessionID,
	})
}

func (n *EventNotifier) onPhaseChanged(ctx context.Context, evt *event.Event) error {
	newPhase := evt.GetPayloadString("new_phase")

	switch newPhase {
	case entity.PhaseManager:
		session, err := n.sessions.GetByID(ctx, evt.SessionID)
		if err != nil || session == nil {
			return err
		}
		addr, ok := n.resolve(session.ManagerID)
		if !ok {
			return nil
		}
		return n.notifier.Notify(ctx, port.Notification{
			Type:          string(evt.Type),
			Recipient:     addr,
			RecipientRole: entity.RoleManager,
			Subject:       "Onboarding paperwork awaiting your review",
			Body:          "A new hire has finished their forms. I-9 Section 2 verification and sign-off are now due.",
			SessionID:     evt.SessionID,
		})

	case entity.PhaseHR:
		return n.notifier.Notify(ctx, port.Notification{
			Type:          string(evt.Type),
			Recipient:     n.hrAddress,
			RecipientRole: entity.RoleHR,
			Subject:       "Onboarding session ready for final approval",
			Body:          fmt.Sprintf("Session %s has passed manager review and awaits HR approval.", evt.SessionID),
			SessionID:     evt.SessionID,
		})

	case entity.PhaseComplete:
		addr, ok := n.resolve(evt.EmployeeID)
		if !ok {
			return nil
		}
		return n.notifier.Notify(ctx, port.Notification{
			Type:          string(evt.Type),
			Recipient:     addr,
			RecipientRole: entity.RoleEmployee,
			Subject:       "Onboarding complete",
			Body:          "All of your onboarding paperwork has been approved. Welcome aboard!",
			SessionID:     evt.SessionID,
		})
	}

	return nil
}

func (n *EventNotifier) onCorrectionsRequested(ctx context.Context, evt *event.Event) error {
	targetPhase := evt.GetPayloadString("target_phase")

	recipientID := evt.EmployeeID
	recipientRole := entity.RoleEmployee
	if targetPhase == entity.PhaseManager {
		session, err := n.sessions.GetByID(ctx, evt.SessionID)
		if err != nil || session == nil {
			return err
		}
		recipientID = session.ManagerID
		recipientRole = entity.RoleManager
	}

	addr, ok := n.resolve(recipientID)
	if !ok {
		return nil
	}

	return n.notifier.Notify(ctx, port.Notification{
		Type:          string(evt.Type),
		Recipient:     addr,
		RecipientRole: recipientRole,
		Subject:       "Corrections needed on onboarding paperwork",
		Body:          fmt.Sprintf("Some forms need to be corrected: %s", evt.GetPayloadString("reason")),
		SessionID:     evt.SessionID,
	})
}

func (n *EventNotifier) onSessionExpired(ctx context.Context, evt *event.Event) error {
	return n.notifier.Notify(ctx, port.Notification{
		Type:          string(evt.Type),
		Recipient:     n.hrAddress,
		RecipientRole: entity.RoleHR,
		Subject:       "Onboarding session expired",
		Body:          fmt.Sprintf("Session %s passed its deadline without completing and has been closed.", evt.SessionID),
		SessionID:     evt.SessionID,
	})
}

func (n *EventNotifier) onFormUpdateCompleted(ctx context.Context, evt *event.Event) error {
	if !evt.GetPayloadBool("pending_approval") {
		return nil
	}

	return n.notifier.Notify(ctx, port.Notification{
		Type:          string(evt.Type),
		Recipient:     n.hrAddress,
		RecipientRole: entity.RoleHR,
		Subject:       "Form update awaiting acknowledgment",
		Body: fmt.Sprintf("Employee %s submitted an update to %s that needs acknowledgment before it takes effect.",
			evt.EmployeeID, evt.GetPayloadString("form_type")),
		UpdateID: evt.GetPayloadString("update_id"),
	})
}
