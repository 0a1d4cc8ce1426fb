package httpapi

import (
	"net/http"

	"RelayMessenger/internal/domain"
)

type registerDeviceRequest struct {
	Token       string `json:"token"`
	DeviceToken string `json:"device_token"`
	Platform    string `json:"platform"`
}

func (a *api) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req registerDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	dev, err := a.notificationsSvc.RegisterDevice(r.Context(), u.ID, req.DeviceToken, req.Platform)
	if err != nil {
		a.logUnexpected("register device failed", err, u.ID)
		WriteDomainError(w, err)
		return
	}

	a.record(r, &u.ID, domain.ActionRegisterDevice, "Platform: "+dev.Platform, domain.ActivityStatusSuccess)
	writeSuccess(w, http.StatusOK, "Device registered")
}
