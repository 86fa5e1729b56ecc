package http

import (
	"encoding/json"
	"errors"
	"net/http"

	application "garden-cloud/internal/masterdata/application"
	masterdata "garden-cloud/internal/masterdata/domain"
)

type registrationPayload struct {
	Serial               string   `json:"serial"`
	Name                 string   `json:"name"`
	GardenID             string   `json:"gardenId"`
	SupportedFrequencies []string `json:"supported_frequencies"`
	DashboardFrequency   string   `json:"dashboard_frequency"`
	Configurations       []struct {
		Type      string `json:"type"`
		ChannelID string `json:"channelId"`
	} `json:"configurations"`
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RegistrationHandler handles explicit machine registration.
type RegistrationHandler struct {
	service *application.RegistrationService
}

// NewRegistrationHandler constructs a handler.
func NewRegistrationHandler(service *application.RegistrationService) (*RegistrationHandler, error) {
	if service == nil {
		return nil, errors.New("registration handler: nil service")
	}
	return &RegistrationHandler{service: service}, nil
}

// ServeHTTP handles POST /api/machines/register.
func (h *RegistrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var payload registrationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json", err.Error())
		return
	}

	req := application.RegistrationRequest{
		Serial:               payload.Serial,
		Name:                 payload.Name,
		GardenID:             payload.GardenID,
		SupportedFrequencies: payload.SupportedFrequencies,
		DashboardFrequency:   payload.DashboardFrequency,
	}
	for _, item := range payload.Configurations {
		req.Configurations = append(req.Configurations, application.ConfigurationItem{
			Type:      item.Type,
			ChannelID: item.ChannelID,
		})
	}

	result, err := h.service.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, masterdata.ErrDuplicateSerial) {
			writeError(w, http.StatusConflict, "serial already registered", payload.Serial)
			return
		}
		writeError(w, http.StatusBadRequest, "registration failed", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"machineId":      result.Machine.ID,
		"serial":         result.Machine.Serial,
		"configurations": len(result.Configurations),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorBody{Error: message, Details: details})
}
