package router

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/car-marketplace-api/internal/models"
)

type userStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	audits []*models.AuditLog
}

func newUserStore() *userStore {
	return &userStore{users: map[string]*models.User{}}
}

func (s *userStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (s *userStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = uuid.NewString()
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *userStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *userStore) UpdateLastLogin(context.Context, string, time.Time) error { return nil }

func (s *userStore) SetBlockedAt(_ context.Context, id string, blockedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.BlockedAt = blockedAt
	return nil
}

func (s *userStore) GetScopes(_ context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return append([]string{}, u.Scopes...), nil
}

func (s *userStore) AddScopes(ctx context.Context, id string, scopes []string) ([]string, error) {
	return s.edit(id, func(current []string) []string {
		for _, scope := range scopes {
			if !hasScope(current, scope) {
				current = append(current, scope)
			}
		}
		return current
	})
}

func (s *userStore) ReplaceScopes(_ context.Context, id string, scopes []string) ([]string, error) {
	return s.edit(id, func([]string) []string { return append([]string{}, scopes...) })
}

func (s *userStore) RemoveScopes(_ context.Context, id string, scopes []string) ([]string, error) {
	return s.edit(id, func(current []string) []string {
		kept := []string{}
		for _, scope := range current {
			if !hasScope(scopes, scope) {
				kept = append(kept, scope)
			}
		}
		return kept
	})
}

func (s *userStore) edit(id string, apply func([]string) []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	u.Scopes = pq.StringArray(apply(append([]string{}, u.Scopes...)))
	return append([]string{}, u.Scopes...), nil
}

func (s *userStore) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, log)
	return nil
}

func (s *userStore) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.audits))
	for _, a := range s.audits {
		out = append(out, a.Action)
	}
	return out
}

func hasScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

type banStore struct {
	mu  sync.Mutex
	jti map[string]time.Time
}

func (b *banStore) BanJTI(_ context.Context, jti string, expiresAt time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.jti == nil {
		b.jti = map[string]time.Time{}
	}
	if _, ok := b.jti[jti]; ok {
		return false, nil
	}
	b.jti[jti] = expiresAt
	return true, nil
}

func (b *banStore) IsBanned(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.jti[jti]
	return ok, nil
}

// catalogStore backs brands, models and cars in memory.
type catalogStore struct {
	mu     sync.Mutex
	brands map[string]models.Brand
	models map[string]models.Model
	cars   map[string]models.Car
}

func newCatalogStore() *catalogStore {
	return &catalogStore{brands: map[string]models.Brand{}, models: map[string]models.Model{}, cars: map[string]models.Car{}}
}

type brandStore struct{ *catalogStore }
type modelStore struct{ *catalogStore }
type carStore struct{ *catalogStore }

func (s brandStore) List(context.Context) ([]models.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Brand{}
	for _, b := range s.brands {
		out = append(out, b)
	}
	return out, nil
}

func (s brandStore) FindByID(_ context.Context, id string) (*models.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.brands[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (s brandStore) ExistsByName(_ context.Context, name, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range s.brands {
		if id != excludeID && b.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s brandStore) Create(_ context.Context, brand *models.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	brand.ID = uuid.NewString()
	s.brands[brand.ID] = *brand
	return nil
}

func (s brandStore) Update(_ context.Context, brand *models.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brands[brand.ID] = *brand
	return nil
}

func (s brandStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.brands, id)
	return nil
}

func (s modelStore) List(_ context.Context, brandID string) ([]models.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Model{}
	for _, m := range s.models {
		if brandID == "" || m.BrandID == brandID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s modelStore) FindByID(_ context.Context, id string) (*models.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &m, nil
}

func (s modelStore) ExistsByName(_ context.Context, brandID, name, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.models {
		if id != excludeID && m.BrandID == brandID && m.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s modelStore) CountByBrand(_ context.Context, brandID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.models {
		if m.BrandID == brandID {
			n++
		}
	}
	return n, nil
}

func (s modelStore) Create(_ context.Context, model *models.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	model.ID = uuid.NewString()
	s.models[model.ID] = *model
	return nil
}

func (s modelStore) Update(_ context.Context, model *models.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[model.ID] = *model
	return nil
}

func (s modelStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.models, id)
	return nil
}

func (s carStore) List(_ context.Context, filter models.CarFilter) ([]models.Car, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Car{}
	for _, c := range s.cars {
		if filter.ModelID != "" && c.ModelID != filter.ModelID {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (s carStore) FindByID(_ context.Context, id string) (*models.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cars[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (s carStore) ExistsByVIN(_ context.Context, vin, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.cars {
		if id != excludeID && c.VIN != nil && *c.VIN == vin {
			return true, nil
		}
	}
	return false, nil
}

func (s carStore) CountActiveBySeller(_ context.Context, sellerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.cars {
		if !c.IsSold && c.SellerID != nil && *c.SellerID == sellerID {
			n++
		}
	}
	return n, nil
}

func (s carStore) CountByModel(_ context.Context, modelID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.cars {
		if c.ModelID == modelID {
			n++
		}
	}
	return n, nil
}

func (s carStore) Create(_ context.Context, car *models.Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	car.ID = uuid.NewString()
	s.cars[car.ID] = *car
	return nil
}

func (s carStore) Update(_ context.Context, car *models.Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cars[car.ID] = *car
	return nil
}

func (s carStore) MarkSold(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cars[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.IsSold = true
	s.cars[id] = c
	return nil
}

func (s carStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cars, id)
	return nil
}
