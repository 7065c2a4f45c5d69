package broadcasts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/internal/models"
)

// DefaultLinkWindow is how far apart a broadcast and an event request from
// the same submission may have been created.
const DefaultLinkWindow = 10 * time.Minute

// LinkOutcome says which step of the linking finished the job.
type LinkOutcome string

const (
	OutcomeAlreadyLinked  LinkOutcome = "already_linked"
	OutcomeLinkedExisting LinkOutcome = "linked_existing"
	OutcomeCreated        LinkOutcome = "created"
)

// LinkResult reports how an event request ended up with its broadcast.
// Linked is true when an existing broadcast was used and false when one was
// synthesized.
type LinkResult struct {
	Linked      bool        `json:"linked"`
	BroadcastID uuid.UUID   `json:"broadcastId"`
	Outcome     LinkOutcome `json:"outcome"`
}

// LinkStore is the persistence the linker needs.
type LinkStore interface {
	FindByEventRequest(ctx context.Context, eventRequestID uuid.UUID) (*uuid.UUID, error)
	FindUnlinkedByContact(ctx context.Context, email, name string, at time.Time, window time.Duration) ([]uuid.UUID, error)
	LinkEventRequest(ctx context.Context, broadcastID, eventRequestID uuid.UUID) (bool, error)
	CreateWithLogs(ctx context.Context, b *models.Broadcast, logStatus string) error
}

// EventRequestStore loads historical requests. GetByID returns nil, nil when
// the request does not exist.
type EventRequestStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.EventRequest, error)
}

// Linker attaches historical event requests to broadcasts without ever
// creating a second broadcast for the same submission.
type Linker struct {
	requests EventRequestStore
	store    LinkStore
	matcher  VenueMatcher
	window   time.Duration
	logger   *zap.Logger
}

// NewLinker creates a linker. A non-positive window means DefaultLinkWindow.
func NewLinker(requests EventRequestStore, store LinkStore, matcher VenueMatcher, window time.Duration, logger *zap.Logger) *Linker {
	if window <= 0 {
		window = DefaultLinkWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Linker{requests: requests, store: store, matcher: matcher, window: window, logger: logger}
}

// LinkOrCreate loads the event request and links it.
func (l *Linker) LinkOrCreate(ctx context.Context, eventRequestID uuid.UUID) (*LinkResult, error) {
	er, err := l.requests.GetByID(ctx, eventRequestID)
	if err != nil {
		return nil, fmt.Errorf("load event request: %w", err)
	}
	if er == nil {
		return nil, ErrEventRequestNotFound
	}
	return l.Link(ctx, er)
}

// Link runs the three steps in order: keep an existing link, adopt an
// unlinked broadcast from the same contact created within the window, or
// synthesize a new broadcast from the request against current venue data.
func (l *Linker) Link(ctx context.Context, er *models.EventRequest) (*LinkResult, error) {
	if res, err := l.existingLink(ctx, er.ID); err != nil || res != nil {
		return res, err
	}

	if er.ContactEmail != "" {
		candidates, err := l.store.FindUnlinkedByContact(ctx, er.ContactEmail, er.ContactName, er.CreatedAt, l.window)
		if err != nil {
			return nil, err
		}
		for _, id := range candidates {
			ok, err := l.store.LinkEventRequest(ctx, id, er.ID)
			if errors.Is(err, ErrAlreadyLinked) {
				return l.linkedConcurrently(ctx, er.ID)
			}
			if err != nil {
				return nil, err
			}
			if ok {
				l.logger.Info("event request linked to existing broadcast",
					zap.String("event_request_id", er.ID.String()),
					zap.String("broadcast_id", id.String()),
				)
				return &LinkResult{Linked: true, BroadcastID: id, Outcome: OutcomeLinkedExisting}, nil
			}
			// another worker took this broadcast; try the next candidate
		}
	}

	return l.synthesize(ctx, er)
}

func (l *Linker) existingLink(ctx context.Context, eventRequestID uuid.UUID) (*LinkResult, error) {
	id, err := l.store.FindByEventRequest(ctx, eventRequestID)
	if err != nil || id == nil {
		return nil, err
	}
	return &LinkResult{Linked: true, BroadcastID: *id, Outcome: OutcomeAlreadyLinked}, nil
}

func (l *Linker) linkedConcurrently(ctx context.Context, eventRequestID uuid.UUID) (*LinkResult, error) {
	res, err := l.existingLink(ctx, eventRequestID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("event request %s: link conflict without a linked broadcast", eventRequestID)
	}
	return res, nil
}

func (l *Linker) synthesize(ctx context.Context, er *models.EventRequest) (*LinkResult, error) {
	req := models.RequestFromEventRequest(er)
	match, err := l.matcher.MatchRequest(ctx, req.MatchCriteria)
	if err != nil {
		return nil, fmt.Errorf("match venues: %w", err)
	}
	b := newBroadcast(req, match.Venues)
	if len(b.SentVenues) == 0 {
		return nil, ErrNoMatches
	}
	b.Status = models.BroadcastStatusBackfilled
	b.EventRequestID = &er.ID
	b.CreatedAt = er.CreatedAt

	err = l.store.CreateWithLogs(ctx, b, models.BroadcastLogStatusBackfilled)
	if errors.Is(err, ErrAlreadyLinked) {
		return l.linkedConcurrently(ctx, er.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("create broadcast: %w", err)
	}
	l.logger.Info("broadcast synthesized for event request",
		zap.String("event_request_id", er.ID.String()),
		zap.String("broadcast_id", b.ID.String()),
		zap.Int("venues", len(b.SentVenues)),
	)
	return &LinkResult{Linked: false, BroadcastID: b.ID, Outcome: OutcomeCreated}, nil
}
