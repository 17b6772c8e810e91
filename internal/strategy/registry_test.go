package strategy

import (
	"testing"

	"ares_api/internal/models"
)

type fakeStrategyRepo struct {
	strategies map[string]*models.Strategy
}

func newFakeStrategyRepo() *fakeStrategyRepo {
	return &fakeStrategyRepo{strategies: make(map[string]*models.Strategy)}
}

func (f *fakeStrategyRepo) Create(s *models.Strategy) error { f.strategies[s.StrategyID] = s; return nil }
func (f *fakeStrategyRepo) Update(s *models.Strategy) error { f.strategies[s.StrategyID] = s; return nil }
func (f *fakeStrategyRepo) GetByStrategyID(id string) (*models.Strategy, error) {
	return f.strategies[id], nil
}
func (f *fakeStrategyRepo) ListActive() ([]models.Strategy, error) { return nil, nil }
func (f *fakeStrategyRepo) ListAll() ([]models.Strategy, error)    { return nil, nil }
func (f *fakeStrategyRepo) Delete(id string) error                 { delete(f.strategies, id); return nil }

func venueTypes(values ...string) models.JSONB {
	items := make([]interface{}, len(values))
	for i, v := range values {
		items[i] = v
	}
	return models.JSONB{"values": items}
}

func TestRegistry_EligibleStrategies_FiltersByVenueAndActive(t *testing.T) {
	store := newFakeStrategyRepo()
	reg, err := NewRegistry(store)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	a := &models.Strategy{StrategyID: "a", IsActive: true, VenueTypes: venueTypes("pumpfun")}
	b := &models.Strategy{StrategyID: "b", IsActive: false, VenueTypes: venueTypes("pumpfun")}
	c := &models.Strategy{StrategyID: "c", IsActive: true, VenueTypes: venueTypes("moonshot")}

	for _, s := range []*models.Strategy{a, b, c} {
		if err := reg.Create(s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got := reg.EligibleStrategies("pumpfun")
	if len(got) != 1 || got[0].StrategyID != "a" {
		t.Fatalf("expected only strategy a, got %v", got)
	}
}

func TestRegistry_EligibleStrategies_RegistrationOrder(t *testing.T) {
	store := newFakeStrategyRepo()
	reg, err := NewRegistry(store)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	for _, id := range []string{"z", "m", "a"} {
		s := &models.Strategy{StrategyID: id, IsActive: true, VenueTypes: venueTypes("pumpfun")}
		if err := reg.Create(s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got := reg.EligibleStrategies("pumpfun")
	if len(got) != 3 || got[0].StrategyID != "z" || got[1].StrategyID != "m" || got[2].StrategyID != "a" {
		t.Fatalf("expected registration order z,m,a, got %v", got)
	}
}

func TestRegistry_EmergencyKillDisablesStrategy(t *testing.T) {
	store := newFakeStrategyRepo()
	reg, err := NewRegistry(store)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	s := &models.Strategy{StrategyID: "a", IsActive: true, VenueTypes: venueTypes("pumpfun")}
	if err := reg.Create(s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := reg.EmergencyKill("a"); err != nil {
		t.Fatalf("EmergencyKill: %v", err)
	}
	if got := reg.EligibleStrategies("pumpfun"); len(got) != 0 {
		t.Fatalf("expected no eligible strategies after kill, got %v", got)
	}
}
