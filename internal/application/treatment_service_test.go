package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
)

func TestGenerateSlotsFillsSpaHours(t *testing.T) {
	catalog := newStubCatalogStore()
	catalog.treatments["tr1"] = &persistence.Treatment{ID: "tr1", Title: "Massage", Active: true}
	svc := NewTreatmentService(catalog, sequentialIDs("slot"), time.UTC)

	created, err := svc.GenerateSlots(context.Background(), adminPrincipal, "tr1",
		date(2025, time.November, 1), date(2025, time.November, 3))
	if err != nil {
		t.Fatalf("GenerateSlots failed: %v", err)
	}
	// Two days, one slot per hour from 09:00 to 17:00.
	if created != 18 {
		t.Fatalf("expected 18 slots, got %d", created)
	}

	// Regeneration over the same window fills nothing new.
	created, err = svc.GenerateSlots(context.Background(), adminPrincipal, "tr1",
		date(2025, time.November, 1), date(2025, time.November, 3))
	if err != nil {
		t.Fatalf("second GenerateSlots failed: %v", err)
	}
	if created != 0 {
		t.Errorf("regeneration created %d slots", created)
	}

	slots, err := svc.ListSlots(context.Background(), "tr1",
		date(2025, time.November, 1), date(2025, time.November, 2))
	if err != nil {
		t.Fatalf("ListSlots failed: %v", err)
	}
	if len(slots) != 9 {
		t.Errorf("expected 9 slots on the first day, got %d", len(slots))
	}
}

func TestGenerateSlotsRequiresAdmin(t *testing.T) {
	catalog := newStubCatalogStore()
	catalog.treatments["tr1"] = &persistence.Treatment{ID: "tr1", Active: true}
	svc := NewTreatmentService(catalog, sequentialIDs("slot"), time.UTC)

	_, err := svc.GenerateSlots(context.Background(), Principal{UserID: "guest"}, "tr1",
		date(2025, time.November, 1), date(2025, time.November, 2))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestGenerateSlotsUnknownTreatment(t *testing.T) {
	svc := NewTreatmentService(newStubCatalogStore(), sequentialIDs("slot"), time.UTC)

	_, err := svc.GenerateSlots(context.Background(), adminPrincipal, "ghost",
		date(2025, time.November, 1), date(2025, time.November, 2))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGenerateSlotsInactiveTreatment(t *testing.T) {
	catalog := newStubCatalogStore()
	catalog.treatments["tr1"] = &persistence.Treatment{ID: "tr1", Active: false}
	svc := NewTreatmentService(catalog, sequentialIDs("slot"), time.UTC)

	_, err := svc.GenerateSlots(context.Background(), adminPrincipal, "tr1",
		date(2025, time.November, 1), date(2025, time.November, 2))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGenerateSlotsRejectsInvertedWindow(t *testing.T) {
	catalog := newStubCatalogStore()
	catalog.treatments["tr1"] = &persistence.Treatment{ID: "tr1", Active: true}
	svc := NewTreatmentService(catalog, sequentialIDs("slot"), time.UTC)

	_, err := svc.GenerateSlots(context.Background(), adminPrincipal, "tr1",
		date(2025, time.November, 3), date(2025, time.November, 1))
	var vErr *ValidationError
	if !asValidationError(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
