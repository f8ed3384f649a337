package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/coffee-shop/backend/auth0"
	"github.com/upb/coffee-shop/backend/models"
	"github.com/upb/coffee-shop/backend/services/drinks"
	"github.com/upb/coffee-shop/backend/utils"
	"go.uber.org/zap"
)

// Permissions required by the protected drink routes
const (
	PermissionGetDrinksDetail = "get:drinks-detail"
	PermissionPostDrinks      = "post:drinks"
	PermissionPatchDrinks     = "patch:drinks"
	PermissionDeleteDrinks    = "delete:drinks"
)

// DrinkService defines the interface for drink operations
type DrinkService interface {
	List(ctx context.Context) ([]*models.Drink, error)
	ListDetailed(ctx context.Context) ([]*models.Drink, error)
	Create(ctx context.Context, req drinks.CreateRequest) (*models.Drink, error)
	Update(ctx context.Context, id int64, req drinks.UpdateRequest) (*models.Drink, error)
	Delete(ctx context.Context, id int64) error
}

// DrinkHandler handles drink-related HTTP requests
type DrinkHandler struct {
	service DrinkService
	logger  *zap.Logger
}

// NewDrinkHandler creates a new DrinkHandler
func NewDrinkHandler(service DrinkService, logger *zap.Logger) *DrinkHandler {
	return &DrinkHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListDrinks handles GET /drinks
// Public; returns the short view of every drink
func (h *DrinkHandler) HandleListDrinks(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	views := make([]models.ShortDrink, 0, len(list))
	for _, d := range list {
		views = append(views, d.Short())
	}

	h.writeOK(w, map[string]interface{}{"drinks": views})
}

// HandleListDrinksDetail handles GET /drinks-detail
func (h *DrinkHandler) HandleListDrinksDetail(w http.ResponseWriter, r *http.Request, claims *auth0.Claims) {
	list, err := h.service.ListDetailed(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeOK(w, map[string]interface{}{"drinks": longViews(list)})
}

// HandleCreateDrink handles POST /drinks
func (h *DrinkHandler) HandleCreateDrink(w http.ResponseWriter, r *http.Request, claims *auth0.Claims) {
	var req drinks.CreateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleDecodeError(w, err, h.logger)
		return
	}

	drink, err := h.service.Create(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("drink added to menu",
		zap.Int64("id", drink.ID),
		zap.String("subject", claims.Subject()))
	h.writeOK(w, map[string]interface{}{"drinks": drink.Long()})
}

// HandleUpdateDrink handles PATCH /drinks/{id}
func (h *DrinkHandler) HandleUpdateDrink(w http.ResponseWriter, r *http.Request, claims *auth0.Claims) {
	id, err := utils.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteNotFound(w, "")
		return
	}

	var req drinks.UpdateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleDecodeError(w, err, h.logger)
		return
	}

	drink, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("drink changed",
		zap.Int64("id", drink.ID),
		zap.String("subject", claims.Subject()))
	h.writeOK(w, map[string]interface{}{"drinks": drink.Long()})
}

// HandleDeleteDrink handles DELETE /drinks/{id}
func (h *DrinkHandler) HandleDeleteDrink(w http.ResponseWriter, r *http.Request, claims *auth0.Claims) {
	id, err := utils.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteNotFound(w, "")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("drink removed from menu",
		zap.Int64("id", id),
		zap.String("subject", claims.Subject()))
	h.writeOK(w, map[string]interface{}{"delete": id})
}

func (h *DrinkHandler) writeOK(w http.ResponseWriter, fields map[string]interface{}) {
	if err := utils.WriteOK(w, fields); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

func longViews(list []*models.Drink) []models.LongDrink {
	views := make([]models.LongDrink, 0, len(list))
	for _, d := range list {
		views = append(views, d.Long())
	}
	return views
}
