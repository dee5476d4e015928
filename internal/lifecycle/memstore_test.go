package lifecycle_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"tutormarket/internal/lifecycle"
	"tutormarket/models"
)

// memStore - хранилище в памяти с транзакциями через снимок состояния.
type memStore struct {
	mu         sync.Mutex
	nextID     int
	clock      time.Time
	users      map[int]models.User
	categories map[int]bool
	projects   map[int]models.Project
	skills     map[int][]string
	bids       map[int]models.Bid
	history    map[int][]models.BidHistory
}

func newMemStore() *memStore {
	return &memStore{
		clock:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		users:      map[int]models.User{},
		categories: map[int]bool{1: true},
		projects:   map[int]models.Project{},
		skills:     map[int][]string{},
		bids:       map[int]models.Bid{},
		history:    map[int][]models.BidHistory{},
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *memStore) now() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) addUser(username string, role models.Role) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := models.User{ID: s.id(), Username: username, Email: username + "@example.com", Role: role}
	s.users[u.ID] = u
	return &u
}

// forceAwardedFlag портит кэш проекта в обход UpdateProject.
func (s *memStore) forceAwardedFlag(projectID int, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.projects[projectID]
	p.IsAwarded = v
	s.projects[projectID] = p
}

func (s *memStore) GetUser(ctx context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, lifecycle.NotFound("user", id)
	}
	return &u, nil
}

func (s *memStore) GetProject(ctx context.Context, id int) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s}.LockProject(ctx, id)
}

func (s *memStore) GetBid(ctx context.Context, id int) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s}.GetBid(ctx, id)
}

func (s *memStore) CategoryExists(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories[id], nil
}

func (s *memStore) ListProjects(ctx context.Context, f lifecycle.ProjectFilter) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Project{}
	for _, p := range s.projects {
		if !p.Published && (!f.Drafts || f.StudentID == 0) {
			continue
		}
		if f.StudentID > 0 && p.StudentID != f.StudentID {
			continue
		}
		if f.CategoryID > 0 && p.CategoryID != f.CategoryID {
			continue
		}
		if f.Status != "" && lifecycle.Status(&p) != f.Status {
			continue
		}
		if f.TutorID > 0 && !s.hasBid(p.ID, f.TutorID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, f.Limit, f.Offset), nil
}

func (s *memStore) hasBid(projectID, tutorID int) bool {
	for _, b := range s.bids {
		if b.ProjectID == projectID && b.TutorID == tutorID {
			return true
		}
	}
	return false
}

func (s *memStore) ListProjectBids(ctx context.Context, projectID int) ([]models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filterBids(func(b models.Bid) bool { return b.ProjectID == projectID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memStore) ListAwardedBids(ctx context.Context, projectID int) ([]models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filterBids(func(b models.Bid) bool { return b.ProjectID == projectID && b.Awarded })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ListTutorBids(ctx context.Context, tutorID int, limit, offset int) ([]models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filterBids(func(b models.Bid) bool { return b.TutorID == tutorID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), nil
}

func (s *memStore) GetBidHistory(ctx context.Context, bidID int) ([]models.BidHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.BidHistory{}, s.history[bidID]...), nil
}

func (s *memStore) filterBids(keep func(models.Bid) bool) []models.Bid {
	out := []models.Bid{}
	for _, b := range s.bids {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// InTx выполняет fn под блокировкой и откатывает изменения при ошибке.
func (s *memStore) InTx(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	if err := fn(memTx{s}); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type memState struct {
	nextID   int
	projects map[int]models.Project
	skills   map[int][]string
	bids     map[int]models.Bid
	history  map[int][]models.BidHistory
}

func (s *memStore) snapshot() memState {
	st := memState{
		nextID:   s.nextID,
		projects: map[int]models.Project{},
		skills:   map[int][]string{},
		bids:     map[int]models.Bid{},
		history:  map[int][]models.BidHistory{},
	}
	for k, v := range s.projects {
		st.projects[k] = v
	}
	for k, v := range s.skills {
		st.skills[k] = append([]string{}, v...)
	}
	for k, v := range s.bids {
		st.bids[k] = v
	}
	for k, v := range s.history {
		st.history[k] = append([]models.BidHistory{}, v...)
	}
	return st
}

func (s *memStore) restore(st memState) {
	s.nextID = st.nextID
	s.projects = st.projects
	s.skills = st.skills
	s.bids = st.bids
	s.history = st.history
}

// memTx работает под блокировкой memStore.
type memTx struct {
	s *memStore
}

func (t memTx) LockProject(ctx context.Context, id int) (*models.Project, error) {
	p, ok := t.s.projects[id]
	if !ok {
		return nil, lifecycle.NotFound("project", id)
	}
	p.RequiredSkills = append([]string{}, t.s.skills[id]...)
	return &p, nil
}

func (t memTx) GetBid(ctx context.Context, id int) (*models.Bid, error) {
	b, ok := t.s.bids[id]
	if !ok {
		return nil, lifecycle.NotFound("bid", id)
	}
	return &b, nil
}

func (t memTx) CreateProject(ctx context.Context, p *models.Project) error {
	p.ID = t.s.id()
	p.CreatedAt = t.s.now()
	p.ModifiedAt = p.CreatedAt
	p.IsAwarded = false
	stored := *p
	stored.RequiredSkills = nil
	t.s.projects[p.ID] = stored
	return nil
}

func (t memTx) UpdateProject(ctx context.Context, p *models.Project) error {
	if _, ok := t.s.projects[p.ID]; !ok {
		return lifecycle.NotFound("project", p.ID)
	}
	p.IsAwarded = false
	for _, b := range t.s.bids {
		if b.ProjectID == p.ID && b.Awarded {
			p.IsAwarded = true
		}
	}
	p.ModifiedAt = t.s.now()
	stored := *p
	stored.RequiredSkills = nil
	t.s.projects[p.ID] = stored
	return nil
}

func (t memTx) SetProjectSkills(ctx context.Context, projectID int, skills []string) error {
	t.s.skills[projectID] = append([]string{}, skills...)
	return nil
}

func (t memTx) CreateBid(ctx context.Context, b *models.Bid) error {
	b.ID = t.s.id()
	b.CreatedAt = t.s.now()
	b.ModifiedAt = b.CreatedAt
	t.s.bids[b.ID] = *b
	return nil
}

func (t memTx) UpdateBid(ctx context.Context, b *models.Bid) error {
	if _, ok := t.s.bids[b.ID]; !ok {
		return lifecycle.NotFound("bid", b.ID)
	}
	b.ModifiedAt = t.s.now()
	t.s.bids[b.ID] = *b
	return nil
}

func (t memTx) CountAwardedBids(ctx context.Context, projectID, exceptBidID int) (int, error) {
	n := 0
	for _, b := range t.s.bids {
		if b.ProjectID == projectID && b.Awarded && b.ID != exceptBidID {
			n++
		}
	}
	return n, nil
}

func (t memTx) AppendBidHistory(ctx context.Context, b *models.Bid, event models.BidEvent) error {
	entries := t.s.history[b.ID]
	t.s.history[b.ID] = append(entries, models.BidHistory{
		ID:          t.s.id(),
		BidID:       b.ID,
		Version:     len(entries) + 1,
		Event:       event,
		Description: b.Description,
		BudgetType:  b.BudgetType,
		Budget:      b.Budget,
		Awarded:     b.Awarded,
		Declined:    b.Declined,
		CreatedAt:   t.s.now(),
	})
	return nil
}
