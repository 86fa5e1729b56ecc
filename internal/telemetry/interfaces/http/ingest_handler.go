package http

import (
	"encoding/json"
	"errors"
	"net/http"

	application "garden-cloud/internal/telemetry/application"
)

// ingestPayload covers both ingest paths. machineId and channelId mark
// the explicit-reference path; date_of_capture plus serial_machine mark
// the serial-resolution path.
type ingestPayload struct {
	DataID        string   `json:"dataId"`
	DateOfCapture any      `json:"date_of_capture"`
	Frequency     string   `json:"frequency"`
	Value         *float64 `json:"value"`
	Type          string   `json:"type"`
	SerialMachine string   `json:"serial_machine"`
	MachineID     string   `json:"machineId"`
	ChannelID     string   `json:"channelId"`
}

// IngestHandler accepts readings over HTTP.
type IngestHandler struct {
	service *application.IngestService
}

// NewIngestHandler constructs a handler.
func NewIngestHandler(service *application.IngestService) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("ingest handler: nil service")
	}
	return &IngestHandler{service: service}, nil
}

// ServeHTTP handles POST /api/ingest/.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var payload ingestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json", err.Error())
		return
	}

	entry := application.RawEntry{
		DataID:         payload.DataID,
		Timestamp:      payload.DateOfCapture,
		FrequencyLabel: payload.Frequency,
		Value:          payload.Value,
		Type:           payload.Type,
		SerialMachine:  payload.SerialMachine,
		MachineID:      payload.MachineID,
		ChannelID:      payload.ChannelID,
	}

	if payload.MachineID != "" || payload.ChannelID != "" {
		h.ingestExplicit(w, r, entry)
		return
	}
	h.ingestBySerial(w, r, entry)
}

func (h *IngestHandler) ingestExplicit(w http.ResponseWriter, r *http.Request, entry application.RawEntry) {
	id, err := h.service.IngestExplicit(r.Context(), entry)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "reading stored",
		"id":      id,
	})
}

func (h *IngestHandler) ingestBySerial(w http.ResponseWriter, r *http.Request, entry application.RawEntry) {
	results := h.service.IngestBatch(r.Context(), []application.RawEntry{entry})
	result := results[0]
	switch result.Outcome {
	case application.OutcomeStored, application.OutcomeCandidate:
		writeJSON(w, http.StatusCreated, map[string]string{"message": "reading accepted"})
	case application.OutcomeRejected:
		writeDomainError(w, result.Err)
	default:
		writeDomainError(w, result.Err)
	}
}
