package drinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/coffee-shop/backend/models"
	"github.com/upb/coffee-shop/backend/repositories"
	"github.com/upb/coffee-shop/backend/services"
	"github.com/upb/coffee-shop/backend/utils"
	"go.uber.org/zap"
)

// CreateRequest is the body of POST /drinks
type CreateRequest struct {
	Title  string        `json:"title" validate:"required,max=80"`
	Recipe models.Recipe `json:"recipe" validate:"required,min=1,dive"`
}

// UpdateRequest is the body of PATCH /drinks/{id}. Absent fields keep their
// stored value.
type UpdateRequest struct {
	Title  *string        `json:"title,omitempty"`
	Recipe *models.Recipe `json:"recipe,omitempty"`
}

// Service manages the drinks menu
type Service struct {
	repo   repositories.DrinkRepository
	txMgr  repositories.TransactionManager
	logger *zap.Logger
}

// NewService creates a new drinks Service
func NewService(repo repositories.DrinkRepository, txMgr repositories.TransactionManager, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		txMgr:  txMgr,
		logger: logger,
	}
}

// List returns every drink on the menu; an empty menu is not an error.
func (s *Service) List(ctx context.Context) ([]*models.Drink, error) {
	drinks, err := s.repo.List(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to list drinks", err)
	}
	return drinks, nil
}

// ListDetailed returns every drink for the detail view and reports
// ErrNoDrinks when the menu is empty.
func (s *Service) ListDetailed(ctx context.Context) ([]*models.Drink, error) {
	drinks, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(drinks) == 0 {
		return nil, services.ErrNoDrinks
	}
	return drinks, nil
}

// Create validates and stores a new drink
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Drink, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	drink := models.NewDrink(req.Title, req.Recipe)
	if err := s.repo.Create(ctx, drink); err != nil {
		return nil, mapRepositoryError(err, drink.ID)
	}

	s.logger.Info("drink created", zap.Int64("id", drink.ID), zap.String("title", drink.Title))
	return drink, nil
}

// Update applies a partial update to an existing drink inside a transaction
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*models.Drink, error) {
	if req.Title == nil && req.Recipe == nil {
		return nil, services.ErrEmptyUpdate
	}

	drink, err := services.RunInTx(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.Drink, error) {
		repo := s.repo.WithTx(tx)

		drink, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, mapRepositoryError(err, id)
		}

		merged := CreateRequest{Title: drink.Title, Recipe: drink.Recipe}
		if req.Title != nil {
			merged.Title = *req.Title
		}
		if req.Recipe != nil {
			merged.Recipe = *req.Recipe
		}
		if err := validate(merged); err != nil {
			return nil, err
		}

		drink.Title = merged.Title
		drink.Recipe = merged.Recipe
		if err := repo.Update(ctx, drink); err != nil {
			return nil, mapRepositoryError(err, id)
		}
		return drink, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("drink updated", zap.Int64("id", drink.ID))
	return drink, nil
}

// Delete removes a drink
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepositoryError(err, id)
	}

	s.logger.Info("drink deleted", zap.Int64("id", id))
	return nil
}

func validate(req CreateRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		domainErr := services.NewDomainError(services.ErrorTypeValidation, "invalid drink", err)
		for field, msg := range utils.GetValidationFields(err) {
			domainErr.WithDetail(field, msg)
		}
		return domainErr
	}
	return nil
}

func mapRepositoryError(err error, id int64) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return services.NewDomainError(services.ErrorTypeNotFound, fmt.Sprintf("drink %d not found", id), err)
	case errors.Is(err, repositories.ErrDuplicate):
		return services.NewDomainError(services.ErrorTypeConflict, services.ErrDuplicateTitle.Message, err)
	default:
		return services.WrapInternal("drink storage failed", err)
	}
}
