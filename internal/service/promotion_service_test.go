package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPromotionCreateValidation(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPromotionService(gdb, newMemoryStore())

	tests := []struct {
		name  string
		input PromotionInput
		want  error
	}{
		{name: "missing title", input: PromotionInput{PageURL: "summer"}, want: ErrPromotionTitleRequired},
		{name: "empty slug", input: PromotionInput{Title: "Summer"}, want: ErrPromotionPageURLInvalid},
		{name: "slug with spaces", input: PromotionInput{Title: "Summer", PageURL: "summer show"}, want: ErrPromotionPageURLInvalid},
		{name: "slug with slash", input: PromotionInput{Title: "Summer", PageURL: "a/b"}, want: ErrPromotionPageURLInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(tt.input); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	config, err := svc.Create(PromotionInput{Title: "Summer show", PageURL: "/Summer-2025/", NavTitle: "Show", IsEnabled: true})
	if err != nil {
		t.Fatalf("failed to create promotion: %v", err)
	}
	if config.PageURL != "summer-2025" || config.IsActive {
		t.Fatalf("unexpected config: %+v", config)
	}

	if _, err := svc.Create(PromotionInput{Title: "Other", PageURL: "summer-2025"}); !errors.Is(err, ErrPromotionPageURLTaken) {
		t.Fatalf("expected ErrPromotionPageURLTaken, got %v", err)
	}
	if _, err := svc.Update(config.ID, PromotionInput{Title: "Renamed", PageURL: "summer-2025", IsEnabled: true}); err != nil {
		t.Fatalf("expected update keeping own slug to succeed, got %v", err)
	}
}

func TestPromotionSingleActiveConfig(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPromotionService(gdb, newMemoryStore())

	active, err := svc.Active()
	if err != nil || active != nil {
		t.Fatalf("expected no active promotion, got %+v %v", active, err)
	}

	a, _ := svc.Create(PromotionInput{Title: "A", PageURL: "a", IsEnabled: true})
	b, _ := svc.Create(PromotionInput{Title: "B", PageURL: "b", IsEnabled: true})

	if _, err := svc.Activate(a.ID); err != nil {
		t.Fatalf("failed to activate a: %v", err)
	}
	if _, err := svc.Activate(b.ID); err != nil {
		t.Fatalf("failed to activate b: %v", err)
	}
	if _, err := svc.Activate(999); !errors.Is(err, ErrPromotionNotFound) {
		t.Fatalf("expected ErrPromotionNotFound, got %v", err)
	}

	configs, err := svc.List()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	activeCount := 0
	for _, c := range configs {
		if c.IsActive {
			activeCount++
			if c.ID != b.ID {
				t.Fatalf("expected b to be active, got %d", c.ID)
			}
		}
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly one active config, got %d", activeCount)
	}

	// 已激活但未启用的配置不对外展示
	if _, err := svc.Update(b.ID, PromotionInput{Title: "B", PageURL: "b", IsEnabled: false}); err != nil {
		t.Fatalf("failed to disable: %v", err)
	}
	active, err = svc.Active()
	if err != nil || active != nil {
		t.Fatalf("expected disabled config to be hidden, got %+v %v", active, err)
	}
	if _, err := svc.ByPageURL("b"); !errors.Is(err, ErrPromotionNotFound) {
		t.Fatalf("expected disabled page to be hidden, got %v", err)
	}
	if page, err := svc.ByPageURL("A"); err != nil || page.ID != a.ID {
		t.Fatalf("expected page a, got %+v %v", page, err)
	}

	deactivated, err := svc.Deactivate(b.ID)
	if err != nil || deactivated.IsActive {
		t.Fatalf("failed to deactivate: %+v %v", deactivated, err)
	}
}

func TestPromotionImages(t *testing.T) {
	gdb := setupServiceTestDB(t)
	store := newMemoryStore()
	svc := NewPromotionService(gdb, store)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	config, _ := svc.Create(PromotionInput{Title: "Expo", PageURL: "expo", IsEnabled: true})
	other, _ := svc.Create(PromotionInput{Title: "Other", PageURL: "other"})

	if _, err := svc.AddImage(ctx, config.ID, ImageUpload{Data: []byte("nope")}, "", now); !errors.Is(err, ErrImageInvalid) {
		t.Fatalf("expected ErrImageInvalid, got %v", err)
	}

	first, err := svc.AddImage(ctx, config.ID, ImageUpload{Data: testPNG(t, 30, 20)}, " Marienplatz ", now)
	if err != nil {
		t.Fatalf("failed to add image: %v", err)
	}
	second, err := svc.AddImage(ctx, config.ID, ImageUpload{Data: testPNG(t, 20, 30)}, "", now)
	if err != nil {
		t.Fatalf("failed to add image: %v", err)
	}
	foreign, _ := svc.AddImage(ctx, other.ID, ImageUpload{Data: testPNG(t, 5, 5)}, "", now)

	if first.ImageOrder != 0 || second.ImageOrder != 1 || first.ImageAlt != "Marienplatz" || first.ImageWidth != 30 {
		t.Fatalf("unexpected images: %+v %+v", first, second)
	}
	if !strings.HasPrefix(first.StorageKey, "promotion/") {
		t.Fatalf("unexpected storage key %s", first.StorageKey)
	}

	if _, err := svc.ReorderImages(config.ID, []uint{second.ID}); !errors.Is(err, ErrPromotionOrderInvalid) {
		t.Fatalf("expected ErrPromotionOrderInvalid for partial order, got %v", err)
	}
	if _, err := svc.ReorderImages(config.ID, []uint{second.ID, foreign.ID}); !errors.Is(err, ErrPromotionOrderInvalid) {
		t.Fatalf("expected ErrPromotionOrderInvalid for foreign image, got %v", err)
	}
	images, err := svc.ReorderImages(config.ID, []uint{second.ID, first.ID})
	if err != nil {
		t.Fatalf("failed to reorder: %v", err)
	}
	if images[0].ID != second.ID || images[1].ID != first.ID {
		t.Fatalf("unexpected order after reorder: %+v", images)
	}

	alt := "Viktualienmarkt"
	updated, err := svc.UpdateImage(first.ID, PromotionImageInput{ImageAlt: &alt})
	if err != nil || updated.ImageAlt != alt || updated.ImageOrder != 1 {
		t.Fatalf("unexpected updated image: %+v %v", updated, err)
	}

	if err := svc.DeleteImage(ctx, second.ID); err != nil {
		t.Fatalf("failed to delete image: %v", err)
	}
	if err := svc.DeleteImage(ctx, second.ID); !errors.Is(err, ErrPromotionImageNotFound) {
		t.Fatalf("expected ErrPromotionImageNotFound, got %v", err)
	}

	if err := svc.Delete(ctx, config.ID); err != nil {
		t.Fatalf("failed to delete config: %v", err)
	}
	if _, err := svc.Get(config.ID); !errors.Is(err, ErrPromotionNotFound) {
		t.Fatalf("expected config to be gone, got %v", err)
	}
	if len(store.deleted) != 2 {
		t.Fatalf("expected both stored images removed, got %v", store.deleted)
	}
}
