package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/countries/internal/logging"
)

// ListCountries runs the listing described by params. An empty result is
// ErrNotFound.
func (s *Service) ListCountries(ctx context.Context, params QueryParams) ([]Country, error) {
	plan, err := BuildQueryPlan(params)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.Query(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", plan, err)
	}
	if len(rows) == 0 {
		return nil, notFound("no countries match %s", plan)
	}

	logging.FromContext(ctx).Debug("countries listed", "plan", plan.String(), "rows", len(rows))
	return rows, nil
}

// GetCountry returns the record whose name matches case-insensitively.
func (s *Service) GetCountry(ctx context.Context, name string) (Country, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Country{}, invalidParameter("name is required")
	}

	c, err := s.store.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return Country{}, notFound("no country named %q", name)
	}
	if err != nil {
		return Country{}, fmt.Errorf("get country %q: %w", name, err)
	}
	return c, nil
}

// DeleteCountry removes the record whose name matches case-insensitively.
func (s *Service) DeleteCountry(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalidParameter("name is required")
	}

	err := s.store.Delete(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return notFound("no country named %q", name)
	}
	if err != nil {
		return fmt.Errorf("delete country %q: %w", name, err)
	}

	logging.FromContext(ctx).Info("country deleted",
		append([]any{"name", name}, ClientFrom(ctx).LogArgs()...)...,
	)
	return nil
}

// Status returns the record count and the latest refresh timestamp.
func (s *Service) Status(ctx context.Context) (Status, error) {
	st, err := s.store.Status(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("status: %w", err)
	}
	return st, nil
}
