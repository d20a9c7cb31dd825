package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"goarea/internal/models"
	"goarea/internal/workbench"
)

const maxHistoryLimit = 100

type WorkbenchHandler struct {
	workbench Workbench
	history   History
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewWorkbenchHandler(w Workbench, history History, logger *zap.Logger) *WorkbenchHandler {
	return &WorkbenchHandler{
		workbench: w,
		history:   history,
		validate:  validator.New(),
		logger:    logger,
	}
}

type AddFunctionRequest struct {
	Expression string `json:"expression"`
	Selected   *bool  `json:"selected"`
}

type UpdateFunctionRequest struct {
	Expression *string `json:"expression" validate:"required_without=Selected"`
	Selected   *bool   `json:"selected" validate:"required_without=Expression"`
}

type BoundsRequest struct {
	Lower *float64 `json:"lower" validate:"required"`
	Upper *float64 `json:"upper" validate:"required"`
}

func (h *WorkbenchHandler) GetState(w http.ResponseWriter, r *http.Request) {
	SendJSON(w, http.StatusOK, h.workbench.Snapshot())
}

func (h *WorkbenchHandler) AddFunction(w http.ResponseWriter, r *http.Request) {
	var req AddFunctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	selected := true
	if req.Selected != nil {
		selected = *req.Selected
	}
	SendJSON(w, http.StatusCreated, h.workbench.AddFunction(req.Expression, selected))
}

func (h *WorkbenchHandler) UpdateFunction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateFunctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		SendErrorResponse(w, http.StatusUnprocessableEntity, models.MissingFieldsMessage)
		return
	}

	spec, err := h.workbench.UpdateFunction(id, req.Expression, req.Selected)
	if errors.Is(err, workbench.ErrFunctionNotFound) {
		SendErrorResponse(w, http.StatusNotFound, "Function not found")
		return
	}
	if err != nil {
		h.logger.Error("update function failed", zap.String("id", id), zap.Error(err))
		SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	SendJSON(w, http.StatusOK, spec)
}

func (h *WorkbenchHandler) RemoveFunction(w http.ResponseWriter, r *http.Request) {
	if err := h.workbench.RemoveFunction(chi.URLParam(r, "id")); err != nil {
		SendErrorResponse(w, http.StatusNotFound, "Function not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkbenchHandler) SetBounds(w http.ResponseWriter, r *http.Request) {
	var req BoundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.workbench.RejectInput()
		SendErrorResponse(w, http.StatusUnprocessableEntity, models.MissingFieldsMessage)
		return
	}

	bounds := models.IntervalBounds{Lower: *req.Lower, Upper: *req.Upper}
	if err := h.workbench.SetBounds(bounds); err != nil {
		SendErrorResponse(w, http.StatusUnprocessableEntity, models.MissingFieldsMessage)
		return
	}
	SendJSON(w, http.StatusOK, bounds)
}

func (h *WorkbenchHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	h.workbench.Recalculate(r.Context())
	SendJSON(w, http.StatusOK, h.workbench.Snapshot())
}

func (h *WorkbenchHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		SendErrorResponse(w, http.StatusNotFound, "History is disabled")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			SendErrorResponse(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	rounds, err := h.history.RecentRounds(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read history", zap.Error(err))
		SendErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}
	SendJSON(w, http.StatusOK, map[string]interface{}{"rounds": rounds})
}
