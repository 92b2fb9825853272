package contacts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hangarlink/market_layer/internal/app/domain/contact"
	"github.com/hangarlink/market_layer/internal/app/domain/user"
	"github.com/hangarlink/market_layer/internal/app/storage"
	"github.com/hangarlink/market_layer/pkg/logger"
)

var (
	// ErrSelfContact is returned when a user requests themselves.
	ErrSelfContact = errors.New("cannot add yourself as a contact")
	// ErrDuplicateContact is returned when a live edge already exists
	// between the two users.
	ErrDuplicateContact = errors.New("contact already exists")
	// ErrNotRecipient is returned when someone other than the recipient
	// tries to respond to a request.
	ErrNotRecipient = errors.New("only the recipient can respond to a contact request")
	// ErrNotParticipant is returned when the actor is not an endpoint of
	// the edge.
	ErrNotParticipant = errors.New("not a participant of this contact")
	// ErrNotPending is returned when responding to a request that is no
	// longer pending.
	ErrNotPending = errors.New("contact request is not pending")
)

// Service manages trust-graph edges between users.
type Service struct {
	users       storage.UserStore
	store       storage.ContactStore
	permissions storage.PermissionStore
	log         *logger.Logger
}

// New constructs a contact service.
func New(users storage.UserStore, store storage.ContactStore, permissions storage.PermissionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("contacts")
	}
	return &Service{users: users, store: store, permissions: permissions, log: log}
}

// Request creates a pending edge toward the user with the given display
// name. A previously declined edge between the pair is recreated fresh.
func (s *Service) Request(ctx context.Context, requesterID int64, requesterName, recipientName string) (contact.Contact, error) {
	recipientName = strings.TrimSpace(recipientName)
	if recipientName == "" {
		return contact.Contact{}, fmt.Errorf("recipient name is required")
	}

	if _, err := s.users.UpsertUser(ctx, user.User{ID: requesterID, Name: requesterName}); err != nil {
		return contact.Contact{}, fmt.Errorf("record requester: %w", err)
	}

	recipient, err := s.users.GetUserByName(ctx, recipientName)
	if err != nil {
		return contact.Contact{}, err
	}
	if recipient.ID == requesterID {
		return contact.Contact{}, ErrSelfContact
	}

	existing, err := s.store.FindContactBetween(ctx, requesterID, recipient.ID)
	switch {
	case err == nil:
		if existing.Status != contact.StatusDeclined {
			return contact.Contact{}, fmt.Errorf("%w (status %s)", ErrDuplicateContact, existing.Status)
		}
		// A declined edge does not block a fresh request; drop it so the
		// new edge carries the current requester orientation.
		if err := s.permissions.DeletePermissionsForContact(ctx, existing.ID); err != nil {
			return contact.Contact{}, err
		}
		if err := s.store.DeleteContact(ctx, existing.ID); err != nil {
			return contact.Contact{}, err
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		return contact.Contact{}, err
	}

	created, err := s.store.CreateContact(ctx, contact.Contact{
		RequesterID:   requesterID,
		RecipientID:   recipient.ID,
		RequesterName: requesterName,
		RecipientName: recipient.Name,
		Status:        contact.StatusPending,
	})
	if err != nil {
		return contact.Contact{}, err
	}
	s.log.WithField("contact_id", created.ID).
		WithField("requester_id", requesterID).
		WithField("recipient_id", recipient.ID).
		Info("contact requested")
	return created, nil
}

// Accept marks a pending request accepted and seeds permission rows for
// both directions of the edge.
func (s *Service) Accept(ctx context.Context, contactID string, actorID int64) (contact.Contact, error) {
	c, err := s.respond(ctx, contactID, actorID, contact.StatusAccepted)
	if err != nil {
		return contact.Contact{}, err
	}
	if err := s.permissions.InitContactPermissions(ctx, c, contact.ServiceTypes); err != nil {
		return contact.Contact{}, fmt.Errorf("initialize permissions: %w", err)
	}
	s.log.WithField("contact_id", c.ID).Info("contact accepted")
	return c, nil
}

// Decline marks a pending request declined.
func (s *Service) Decline(ctx context.Context, contactID string, actorID int64) (contact.Contact, error) {
	c, err := s.respond(ctx, contactID, actorID, contact.StatusDeclined)
	if err != nil {
		return contact.Contact{}, err
	}
	s.log.WithField("contact_id", c.ID).Info("contact declined")
	return c, nil
}

func (s *Service) respond(ctx context.Context, contactID string, actorID int64, status string) (contact.Contact, error) {
	c, err := s.store.GetContact(ctx, contactID)
	if err != nil {
		return contact.Contact{}, err
	}
	if c.RecipientID != actorID {
		return contact.Contact{}, ErrNotRecipient
	}
	if c.Status != contact.StatusPending {
		return contact.Contact{}, fmt.Errorf("%w (status %s)", ErrNotPending, c.Status)
	}
	now := time.Now().UTC()
	c.Status = status
	c.RespondedAt = &now
	return s.store.UpdateContact(ctx, c)
}

// Remove deletes an edge and its permission rows. Either endpoint may
// remove the edge at any status.
func (s *Service) Remove(ctx context.Context, contactID string, actorID int64) error {
	c, err := s.store.GetContact(ctx, contactID)
	if err != nil {
		return err
	}
	if !c.Involves(actorID) {
		return ErrNotParticipant
	}
	if err := s.permissions.DeletePermissionsForContact(ctx, c.ID); err != nil {
		return err
	}
	if err := s.store.DeleteContact(ctx, c.ID); err != nil {
		return err
	}
	s.log.WithField("contact_id", c.ID).WithField("actor_id", actorID).Info("contact removed")
	return nil
}

// List returns all edges touching the user, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]contact.Contact, error) {
	return s.store.ListContactsForUser(ctx, userID)
}
