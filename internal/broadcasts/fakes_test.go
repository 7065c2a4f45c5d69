package broadcasts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/martinmuron/prostormat-sub002/internal/models"
	"github.com/martinmuron/prostormat-sub002/internal/venues"
)

// memStore keeps broadcasts in memory with the same guarantees the database
// gives: atomic create, unique event request link and compare-and-swap link.
type memStore struct {
	mu         sync.Mutex
	broadcasts map[uuid.UUID]*models.Broadcast
	logs       []models.BroadcastLog
	createErr  error
	// stale candidates returned regardless of their current link state
	stale []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{broadcasts: map[uuid.UUID]*models.Broadcast{}}
}

func (s *memStore) CreateWithLogs(_ context.Context, b *models.Broadcast, logStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(b.SentVenues) == 0 {
		return ErrNoMatches
	}
	if s.createErr != nil {
		return s.createErr
	}
	if b.EventRequestID != nil {
		for _, existing := range s.broadcasts {
			if existing.EventRequestID != nil && *existing.EventRequestID == *b.EventRequestID {
				return ErrAlreadyLinked
			}
		}
	}
	b.ID = uuid.New()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	b.Logs = nil
	for _, v := range b.SentVenues {
		l := models.BroadcastLog{ID: uuid.New(), BroadcastID: b.ID, VenueID: v, Status: logStatus, CreatedAt: b.CreatedAt}
		b.Logs = append(b.Logs, l)
		s.logs = append(s.logs, l)
	}
	cp := *b
	s.broadcasts[b.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Broadcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	cp.Logs = append([]models.BroadcastLog(nil), b.Logs...)
	return &cp, nil
}

func (s *memStore) ReopenFailedLogs(_ context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok {
		return 0, ErrNotFound
	}
	n := 0
	for i := range b.Logs {
		if b.Logs[i].Status == models.BroadcastLogStatusFailed {
			b.Logs[i].Status = models.BroadcastLogStatusPending
			n++
		}
	}
	if n > 0 {
		b.Status = models.BroadcastStatusPending
	}
	return n, nil
}

// setDelivery sets the status of the broadcast and of its log for venueID.
func (s *memStore) setDelivery(id, venueID uuid.UUID, broadcastStatus, logStatus string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.broadcasts[id]
	b.Status = broadcastStatus
	for i := range b.Logs {
		if b.Logs[i].VenueID == venueID {
			b.Logs[i].Status = logStatus
		}
	}
}

func (s *memStore) FindByEventRequest(_ context.Context, eventRequestID uuid.UUID) (*uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range s.broadcasts {
		if b.EventRequestID != nil && *b.EventRequestID == eventRequestID {
			id := id
			return &id, nil
		}
	}
	return nil, nil
}

func (s *memStore) FindUnlinkedByContact(_ context.Context, email, name string, at time.Time, window time.Duration) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale != nil {
		return s.stale, nil
	}
	var ids []uuid.UUID
	for id, b := range s.broadcasts {
		if b.EventRequestID != nil || b.ContactEmail != email || b.ContactName != name {
			continue
		}
		if b.CreatedAt.Before(at.Add(-window)) || b.CreatedAt.After(at.Add(window)) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memStore) LinkEventRequest(_ context.Context, broadcastID, eventRequestID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.broadcasts {
		if b.EventRequestID != nil && *b.EventRequestID == eventRequestID {
			return false, ErrAlreadyLinked
		}
	}
	b, ok := s.broadcasts[broadcastID]
	if !ok || b.EventRequestID != nil {
		return false, nil
	}
	id := eventRequestID
	b.EventRequestID = &id
	return true, nil
}

func (s *memStore) count() (broadcasts, logs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.broadcasts), len(s.logs)
}

// seed stores an unlinked live broadcast.
func (s *memStore) seed(name, email string, createdAt time.Time, venueIDs ...uuid.UUID) uuid.UUID {
	b := &models.Broadcast{
		Title: "seed", ContactName: name, ContactEmail: email, SentVenues: venueIDs,
		Status: models.BroadcastStatusPending, CreatedAt: createdAt, GuestCount: 1,
	}
	if err := s.CreateWithLogs(context.Background(), b, models.BroadcastLogStatusPending); err != nil {
		panic(err)
	}
	return b.ID
}

type memRequests map[uuid.UUID]*models.EventRequest

func (m memRequests) GetByID(_ context.Context, id uuid.UUID) (*models.EventRequest, error) {
	return m[id], nil
}

type staticMatcher struct {
	venues []models.Venue
	calls  int
	mu     sync.Mutex
}

func (m *staticMatcher) MatchRequest(_ context.Context, c models.MatchCriteria) (*venues.MatchResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return &venues.MatchResult{Venues: m.venues, MinCapacity: c.GuestCount.MinimumCapacity()}, nil
}

type venueDirectory map[uuid.UUID]models.Venue

func (d venueDirectory) FindByIDs(_ context.Context, ids []uuid.UUID) ([]models.Venue, error) {
	var out []models.Venue
	for _, id := range ids {
		if v, ok := d[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func directoryOf(vs ...models.Venue) venueDirectory {
	d := venueDirectory{}
	for _, v := range vs {
		d[v.ID] = v
	}
	return d
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishBroadcast(ctx context.Context, job models.DeliveryJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func venue(name string) models.Venue {
	email := name + "@example.cz"
	return models.Venue{
		ID: uuid.New(), Name: name, Slug: name, ContactEmail: &email,
		Manager: &models.Manager{Name: "Manager", Email: "manager+" + name + "@example.cz"},
	}
}
