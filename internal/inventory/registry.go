package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rogerio-castellano/inventory-sync/internal/models"
	"github.com/rogerio-castellano/inventory-sync/internal/repo"
)

// Registry manages threshold registrations per owner. Registrations are
// not tied to a location.
type Registry struct {
	thresholds *repo.ThresholdRepository
}

func NewRegistry(thresholds *repo.ThresholdRepository) *Registry {
	return &Registry{thresholds: thresholds}
}

// Register starts monitoring itemKey for owner. It fails with
// repo.ErrAlreadyExists when the pair is already registered.
func (r *Registry) Register(ctx context.Context, owner, itemKey string, threshold int) (models.ThresholdRegistration, error) {
	if err := ValidateName("owner", owner); err != nil {
		return models.ThresholdRegistration{}, err
	}
	if err := ValidateName("item name", itemKey); err != nil {
		return models.ThresholdRegistration{}, err
	}
	if err := validateCount("threshold", threshold); err != nil {
		return models.ThresholdRegistration{}, err
	}

	reg := models.ThresholdRegistration{Owner: owner, ItemKey: itemKey, Threshold: threshold}
	if err := r.thresholds.Create(ctx, reg); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return models.ThresholdRegistration{}, fmt.Errorf("item %q is already being monitored: %w", itemKey, err)
		}
		return models.ThresholdRegistration{}, err
	}
	return reg, nil
}

// Unregister stops monitoring itemKey for owner. It fails with
// repo.ErrNotFound when no such registration exists.
func (r *Registry) Unregister(ctx context.Context, owner, itemKey string) error {
	if err := ValidateName("owner", owner); err != nil {
		return err
	}
	if err := ValidateName("item name", itemKey); err != nil {
		return err
	}
	return r.thresholds.Delete(ctx, owner, itemKey)
}

// ListFor returns owner's registrations ordered by item name.
func (r *Registry) ListFor(ctx context.Context, owner string) ([]models.ThresholdRegistration, error) {
	if err := ValidateName("owner", owner); err != nil {
		return nil, err
	}
	return r.thresholds.List(ctx, owner)
}
