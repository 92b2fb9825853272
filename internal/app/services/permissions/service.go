package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/hangarlink/market_layer/internal/app/domain/contact"
	"github.com/hangarlink/market_layer/internal/app/storage"
	"github.com/hangarlink/market_layer/pkg/logger"
)

var (
	// ErrNotParticipant is returned when the actor is not an endpoint of
	// the contact edge.
	ErrNotParticipant = errors.New("not a participant of this contact")
	// ErrContactNotAccepted is returned when setting permissions on an
	// edge that is not accepted.
	ErrContactNotAccepted = errors.New("contact is not accepted")
	// ErrUnknownService is returned for a service type outside the known set.
	ErrUnknownService = errors.New("unknown service type")
)

// Service manages directional access grants on accepted contact edges.
type Service struct {
	contacts storage.ContactStore
	store    storage.PermissionStore
	log      *logger.Logger
}

// New constructs a permission service.
func New(contacts storage.ContactStore, store storage.PermissionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("permissions")
	}
	return &Service{contacts: contacts, store: store, log: log}
}

// Set grants or revokes the actor's permission toward the other endpoint
// of the edge.
func (s *Service) Set(ctx context.Context, contactID string, actorID int64, serviceType string, canAccess bool) (contact.Permission, error) {
	if !knownService(serviceType) {
		return contact.Permission{}, fmt.Errorf("%w: %s", ErrUnknownService, serviceType)
	}

	c, err := s.contacts.GetContact(ctx, contactID)
	if err != nil {
		return contact.Permission{}, err
	}
	if !c.Involves(actorID) {
		return contact.Permission{}, ErrNotParticipant
	}
	if c.Status != contact.StatusAccepted {
		return contact.Permission{}, fmt.Errorf("%w (status %s)", ErrContactNotAccepted, c.Status)
	}

	p, err := s.store.UpsertPermission(ctx, contact.Permission{
		ContactID:   c.ID,
		GrantorID:   actorID,
		GranteeID:   c.Other(actorID),
		ServiceType: serviceType,
		CanAccess:   canAccess,
	})
	if err != nil {
		return contact.Permission{}, err
	}
	s.log.WithField("contact_id", c.ID).
		WithField("grantor_id", p.GrantorID).
		WithField("service_type", serviceType).
		WithField("can_access", canAccess).
		Info("permission updated")
	return p, nil
}

// Check reports whether the grantor allows the grantee the given service.
// A missing row means no access, not an error.
func (s *Service) Check(ctx context.Context, grantorID, granteeID int64, serviceType string) (bool, error) {
	p, err := s.store.GetPermission(ctx, grantorID, granteeID, serviceType)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.CanAccess, nil
}

// Grantors returns the users who allow the grantee the given service.
func (s *Service) Grantors(ctx context.Context, granteeID int64, serviceType string) ([]int64, error) {
	return s.store.ListGrantors(ctx, granteeID, serviceType)
}

// ListForContact returns both directions of one edge, endpoint only.
func (s *Service) ListForContact(ctx context.Context, contactID string, actorID int64) ([]contact.Permission, error) {
	c, err := s.contacts.GetContact(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if !c.Involves(actorID) {
		return nil, ErrNotParticipant
	}
	return s.store.ListPermissionsForContact(ctx, contactID)
}

func knownService(serviceType string) bool {
	for _, svc := range contact.ServiceTypes {
		if svc == serviceType {
			return true
		}
	}
	return false
}
