package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/yigit/slotbook/internal/app/models"
	"github.com/yigit/slotbook/internal/pkg/validation"
)

// SlotCatalog is the part of the store the grid seeding needs
type SlotCatalog interface {
	CountSlots(ctx context.Context) (int, error)
	InsertSlots(ctx context.Context, slots []*models.Slot) (int64, error)
}

// BuildGrid expands days × hours into slots. Every invalid day or hour is
// reported; duplicates are dropped.
func BuildGrid(days, hours []string) ([]*models.Slot, error) {
	var errs error

	parsedDays := make([]models.Day, 0, len(days))
	for _, d := range days {
		day, ok := models.ParseDay(d)
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("invalid slot day %q", d))
			continue
		}
		parsedDays = append(parsedDays, day)
	}
	for _, h := range hours {
		if !validation.IsValidHour(h) {
			errs = errors.Join(errs, fmt.Errorf("invalid slot hour %q, expected HH:MM", h))
		}
	}
	if errs != nil {
		return nil, errs
	}

	seen := make(map[string]bool)
	slots := make([]*models.Slot, 0, len(parsedDays)*len(hours))
	for _, day := range parsedDays {
		for _, hour := range hours {
			key := string(day) + " " + hour
			if seen[key] {
				continue
			}
			seen[key] = true
			slots = append(slots, &models.Slot{Day: day, Hour: hour})
		}
	}
	models.SortSlots(slots)
	return slots, nil
}

// SeedSlots creates the weekly grid when the catalog is empty. An existing
// catalog is left alone, so restarting with a different grid config does not
// touch booked slots.
func SeedSlots(ctx context.Context, catalog SlotCatalog, days, hours []string, lgr zerolog.Logger) (int64, error) {
	slots, err := BuildGrid(days, hours)
	if err != nil {
		return 0, err
	}

	count, err := catalog.CountSlots(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count slots: %w", err)
	}
	if count > 0 {
		lgr.Info().Int("slots", count).Msg("Slot catalog already seeded")
		return 0, nil
	}

	inserted, err := catalog.InsertSlots(ctx, slots)
	if err != nil {
		return 0, fmt.Errorf("failed to insert slots: %w", err)
	}

	lgr.Info().
		Int64("inserted", inserted).
		Int("days", len(days)).
		Int("hours", len(hours)).
		Msg("Weekly slot grid created")
	return inserted, nil
}
