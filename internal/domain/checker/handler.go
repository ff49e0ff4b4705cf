package checker

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/symptom-check", h.Check)
	api.POST("/symptom-followup", h.Followup)
	api.POST("/symptom-session/end", h.EndSession)
	api.GET("/symptom-suggestions", h.Suggestions)
}

type envelope struct {
	Success  bool            `json:"success"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Check runs a fresh symptom analysis.
func (h *Handler) Check(c echo.Context) error {
	var req AnalysisRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, envelope{Error: "invalid request body"})
	}
	result, err := h.svc.Analyze(c.Request().Context(), req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, envelope{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Analysis: result})
}

// Followup refines a previous analysis with follow-up answers. A request
// without new answers re-runs the analysis unchanged.
func (h *Handler) Followup(c echo.Context) error {
	var req RefineRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, envelope{Error: "invalid request body"})
	}
	result, err := h.svc.Refine(c.Request().Context(), req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, envelope{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Analysis: result})
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
}

// EndSession discards session state early.
func (h *Handler) EndSession(c echo.Context) error {
	var req endSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, envelope{Error: "invalid request body"})
	}
	if err := h.svc.EndSession(c.Request().Context(), req.SessionID); err != nil {
		return c.JSON(http.StatusBadRequest, envelope{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// Suggestions returns the curated symptom list for input assistance.
func (h *Handler) Suggestions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"success":       true,
		"suggestions":   h.svc.Suggestions(),
		"synonym_count": h.svc.SynonymCount(),
	})
}
