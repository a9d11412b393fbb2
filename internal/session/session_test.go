package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"weodash/internal/engine"
	"weodash/internal/models"
)

func fixedLoader(loads *int) LoadFunc {
	return func(ctx context.Context) (*engine.Table, error) {
		*loads++
		return engine.NewTable([]models.Record{
			{Country: "Brazil", Indicator: "inflation", Year: 2024, Vintage: "forecast", Value: models.Some(4.0)},
			{Country: "Germany", Indicator: "inflation", Year: 2024, Vintage: "forecast", Value: models.Some(2.0)},
		}), nil
	}
}

func TestRegistryLifecycle(t *testing.T) {
	loads := 0
	reg := NewRegistry(fixedLoader(&loads))

	a, err := reg.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b, err := reg.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Every session re-reads the source
	if loads != 2 {
		t.Errorf("Expected 2 loads, got %d", loads)
	}
	if a.ID == b.ID || a.Table() == b.Table() {
		t.Error("Sessions must not share ids or tables")
	}
	if reg.Len() != 2 {
		t.Errorf("Expected 2 sessions, got %d", reg.Len())
	}

	if got, ok := reg.Get(a.ID); !ok || got != a {
		t.Error("Expected to find session a")
	}
	if !reg.Delete(a.ID) {
		t.Error("Expected delete to succeed")
	}
	if reg.Delete(a.ID) {
		t.Error("Expected second delete to report missing session")
	}
	if _, ok := reg.Get(a.ID); ok {
		t.Error("Deleted session still reachable")
	}
}

func TestRegistryLoadError(t *testing.T) {
	want := &engine.LoadError{Path: "weo.xlsx", Err: errors.New("boom")}
	reg := NewRegistry(func(ctx context.Context) (*engine.Table, error) { return nil, want })

	if _, err := reg.Create(context.Background()); !errors.Is(err, want) {
		t.Errorf("Expected load error, got %v", err)
	}
	if reg.Len() != 0 {
		t.Error("Failed load must not register a session")
	}
}

func TestSessionSelectionIsolation(t *testing.T) {
	loads := 0
	reg := NewRegistry(fixedLoader(&loads))
	a, _ := reg.Create(context.Background())
	b, _ := reg.Create(context.Background())

	countries := []string{"Brazil"}
	if err := a.Select(models.FilterSelection{Countries: countries}); err != nil {
		t.Fatal(err)
	}
	countries[0] = "Germany" // caller mutation must not leak in

	view, sel, err := a.CurrentView()
	if err != nil {
		t.Fatal(err)
	}
	if len(view) != 1 || view[0].Country != "Brazil" {
		t.Errorf("Expected Brazil only, got %+v", view)
	}
	if len(sel.Countries) != 1 || sel.Countries[0] != "Brazil" {
		t.Errorf("Expected the stored selection back, got %+v", sel)
	}

	other, _, err := b.CurrentView()
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 2 {
		t.Errorf("Expected session b unfiltered, got %+v", other)
	}
}

func TestSessionSelectRejectsInvalidRange(t *testing.T) {
	loads := 0
	reg := NewRegistry(fixedLoader(&loads))
	s, _ := reg.Create(context.Background())

	_ = s.Select(models.FilterSelection{Indicator: "inflation"})
	err := s.Select(models.FilterSelection{YearRange: &models.YearRange{Min: 2025, Max: 2020}})

	var re *engine.InvalidRangeError
	if !errors.As(err, &re) {
		t.Fatalf("Expected InvalidRangeError, got %v", err)
	}
	if s.Selection().Indicator != "inflation" {
		t.Error("Invalid selection must not replace the stored one")
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestRegistryIdleTTL(t *testing.T) {
	loads := 0
	clock := &fakeClock{t: time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)}
	reg := NewRegistry(fixedLoader(&loads), WithIdleTTL(30*time.Minute))
	reg.now = clock.now

	a, _ := reg.Create(context.Background())
	b, _ := reg.Create(context.Background())

	clock.t = clock.t.Add(20 * time.Minute)
	if _, ok := reg.Get(b.ID); !ok {
		t.Fatal("Expected session b to be alive")
	}

	// a has now been idle for 40 minutes, b for 20
	clock.t = clock.t.Add(20 * time.Minute)
	if _, ok := reg.Get(a.ID); ok {
		t.Error("Expected idle session a to have expired")
	}
	if _, ok := reg.Get(b.ID); !ok {
		t.Error("Expected recently used session b to survive")
	}
	if reg.Len() != 1 {
		t.Errorf("Expected 1 live session, got %d", reg.Len())
	}
}

func TestRegistryMaxSessionsEvictsLeastRecentlyUsed(t *testing.T) {
	loads := 0
	clock := &fakeClock{t: time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)}
	reg := NewRegistry(fixedLoader(&loads), WithMaxSessions(2))
	reg.now = clock.now

	a, _ := reg.Create(context.Background())
	clock.t = clock.t.Add(time.Minute)
	b, _ := reg.Create(context.Background())
	clock.t = clock.t.Add(time.Minute)
	reg.Get(a.ID)
	clock.t = clock.t.Add(time.Minute)

	c, _ := reg.Create(context.Background())

	if reg.Len() != 2 {
		t.Fatalf("Expected 2 live sessions, got %d", reg.Len())
	}
	if _, ok := reg.Get(b.ID); ok {
		t.Error("Expected least recently used session b to be evicted")
	}
	for _, s := range []*Session{a, c} {
		if _, ok := reg.Get(s.ID); !ok {
			t.Errorf("Expected session %s to survive", s.ID)
		}
	}
}
