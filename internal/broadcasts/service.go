// Package broadcasts distributes inquiries to matched venues and reconciles
// historical event requests with the broadcasts they produced.
package broadcasts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/internal/models"
	"github.com/martinmuron/prostormat-sub002/internal/venues"
)

// Store is the persistence the service needs.
type Store interface {
	CreateWithLogs(ctx context.Context, b *models.Broadcast, logStatus string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Broadcast, error)
	ReopenFailedLogs(ctx context.Context, broadcastID uuid.UUID) (int, error)
}

// VenueDirectory looks up the current venue records of a snapshot.
type VenueDirectory interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Venue, error)
}

// VenueMatcher matches an inquiry against the venue catalog.
type VenueMatcher interface {
	MatchRequest(ctx context.Context, c models.MatchCriteria) (*venues.MatchResult, error)
}

// Publisher hands a created broadcast to the delivery transport.
type Publisher interface {
	PublishBroadcast(ctx context.Context, job models.DeliveryJob) error
}

// Service creates broadcasts for live inquiries.
type Service struct {
	store     Store
	matcher   VenueMatcher
	directory VenueDirectory
	publisher Publisher
	logger    *zap.Logger
}

// NewService creates a broadcast service. publisher may be nil, in which
// case broadcasts are stored but not handed off for delivery.
func NewService(store Store, matcher VenueMatcher, directory VenueDirectory, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, matcher: matcher, directory: directory, publisher: publisher, logger: logger}
}

// Create matches the inquiry and distributes it to the matched venues.
func (s *Service) Create(ctx context.Context, req models.Request) (*models.Broadcast, *venues.MatchResult, error) {
	match, err := s.matcher.MatchRequest(ctx, req.MatchCriteria)
	if err != nil {
		return nil, nil, fmt.Errorf("match venues: %w", err)
	}
	b, err := s.Distribute(ctx, req, match.Venues)
	if err != nil {
		return nil, match, err
	}
	return b, match, nil
}

// Distribute stores a pending broadcast with one pending log per venue and
// queues it for delivery. An empty venue list yields ErrNoMatches and
// nothing is written.
func (s *Service) Distribute(ctx context.Context, req models.Request, matched []models.Venue) (*models.Broadcast, error) {
	b := newBroadcast(req, matched)
	if len(b.SentVenues) == 0 {
		return nil, ErrNoMatches
	}
	b.Status = models.BroadcastStatusPending
	if err := s.store.CreateWithLogs(ctx, b, models.BroadcastLogStatusPending); err != nil {
		return nil, fmt.Errorf("create broadcast: %w", err)
	}
	s.logger.Info("broadcast created",
		zap.String("broadcast_id", b.ID.String()),
		zap.Int("venues", len(b.SentVenues)),
	)

	if s.publisher != nil {
		if err := s.publisher.PublishBroadcast(ctx, deliveryJob(b, req, matched)); err != nil {
			s.logger.Error("publish broadcast failed", zap.String("broadcast_id", b.ID.String()), zap.Error(err))
		}
	}
	return b, nil
}

// Get returns a broadcast with its delivery logs.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Broadcast, error) {
	return s.store.GetByID(ctx, id)
}

// ResendResult reports what a resend queued.
type ResendResult struct {
	BroadcastID uuid.UUID `json:"broadcastId"`
	Reopened    int       `json:"reopened"`
	Pending     int       `json:"pending"`
}

// Resend queues a live broadcast for delivery again. Failed logs are put back
// to pending first; logs already sent are left alone, so only venues not yet
// reached are notified. It also recovers a broadcast whose first hand-off
// was lost.
func (s *Service) Resend(ctx context.Context, id uuid.UUID) (*ResendResult, error) {
	if s.publisher == nil {
		return nil, ErrNoTransport
	}
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == models.BroadcastStatusBackfilled {
		return nil, ErrNotResendable
	}
	pending := 0
	for _, l := range b.Logs {
		if l.Status == models.BroadcastLogStatusPending {
			pending++
		}
	}
	reopened, err := s.store.ReopenFailedLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	if pending+reopened == 0 {
		return nil, ErrNothingToResend
	}

	current, err := s.directory.FindByIDs(ctx, b.SentVenues)
	if err != nil {
		return nil, fmt.Errorf("load venues: %w", err)
	}
	if err := s.publisher.PublishBroadcast(ctx, deliveryJob(b, models.RequestFromBroadcast(b), current)); err != nil {
		return nil, fmt.Errorf("publish broadcast: %w", err)
	}
	s.logger.Info("broadcast resend queued",
		zap.String("broadcast_id", id.String()),
		zap.Int("reopened", reopened),
		zap.Int("pending", pending+reopened),
	)
	return &ResendResult{BroadcastID: id, Reopened: reopened, Pending: pending + reopened}, nil
}

// newBroadcast builds the record for req with a de-duplicated venue snapshot.
func newBroadcast(req models.Request, matched []models.Venue) *models.Broadcast {
	ids := make([]uuid.UUID, 0, len(matched))
	seen := make(map[uuid.UUID]struct{}, len(matched))
	for _, v := range matched {
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}
		ids = append(ids, v.ID)
	}
	return &models.Broadcast{
		Title:              deriveTitle(req),
		Description:        req.Description,
		EventType:          req.EventType,
		EventDate:          req.EventDate,
		GuestCount:         req.GuestCount.RecordValue(),
		LocationPreference: req.LocationPreference,
		Requirements:       req.Requirements,
		ContactName:        req.ContactName,
		ContactEmail:       req.ContactEmail,
		ContactPhone:       req.ContactPhone,
		SentVenues:         ids,
	}
}

func deriveTitle(req models.Request) string {
	if t := strings.TrimSpace(req.Title); t != "" {
		return t
	}
	kind := strings.TrimSpace(req.EventType)
	if kind == "" {
		kind = "Akce"
	}
	title := fmt.Sprintf("%s pro %d hostů", kind, req.GuestCount.RecordValue())
	if req.LocationPreference != nil {
		if loc := strings.TrimSpace(*req.LocationPreference); loc != "" {
			title += ", " + loc
		}
	}
	return title
}

func deliveryJob(b *models.Broadcast, req models.Request, matched []models.Venue) models.DeliveryJob {
	job := models.DeliveryJob{BroadcastID: b.ID, Request: req}
	seen := make(map[uuid.UUID]struct{}, len(matched))
	for _, v := range matched {
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}
		dv := models.DeliveryVenue{VenueID: v.ID, Name: v.Name}
		if v.ContactEmail != nil {
			dv.ContactEmail = *v.ContactEmail
		}
		if v.Manager != nil {
			dv.ManagerEmail = v.Manager.Email
		}
		job.Venues = append(job.Venues, dv)
	}
	return job
}
