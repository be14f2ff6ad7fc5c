package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/openline/internal/store"
)

type DeviceHandler struct {
	devices *store.DeviceStore
	logger  *slog.Logger
}

func NewDeviceHandler(ds *store.DeviceStore, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{devices: ds, logger: logger}
}

type registerDeviceRequest struct {
	UserID     string `json:"userId"`
	DeviceName string `json:"deviceName"`
}

// Register handles POST /api/register-device. The returned token is shown
// exactly once.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	token, err := h.devices.Create(req.UserID, req.DeviceName)
	if err != nil {
		h.logger.Error("register device", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register device")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"token":  token,
		"userId": req.UserID,
	})
}
