package predict

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/predict/:disease", h.Predict)
	api.GET("/diseases", h.Diseases)
}

// Predict forwards a feature vector to the model service for one disease.
func (h *Handler) Predict(c echo.Context) error {
	disease := strings.ToLower(c.Param("disease"))
	var req Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false, "error": "invalid request body",
		})
	}
	pred, err := h.svc.Predict(c.Request().Context(), disease, req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, map[string]any{"success": false, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "prediction": pred})
}

// Diseases lists the screenable conditions.
func (h *Handler) Diseases(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"diseases": h.svc.Diseases(),
	})
}
