package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	application "garden-cloud/internal/telemetry/application"
	telemetry "garden-cloud/internal/telemetry/domain"
)

// DataHandler serves the two read endpoints.
type DataHandler struct {
	service *application.QueryService
}

// NewDataHandler constructs a handler.
func NewDataHandler(service *application.QueryService) (*DataHandler, error) {
	if service == nil {
		return nil, errors.New("data handler: nil service")
	}
	return &DataHandler{service: service}, nil
}

// ServeHTTP routes the data endpoints.
func (h *DataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case "/api/data/latest":
		h.handleLatest(w, r)
	case "/api/data/query":
		h.handleQuery(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *DataHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	serial := r.URL.Query().Get("serial")
	latest, err := h.service.Latest(r.Context(), serial)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (h *DataHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	params, err := parseQueryParams(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	records, err := h.service.Query(r.Context(), params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []application.ReadingRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func parseQueryParams(r *http.Request) (application.QueryParams, error) {
	values := r.URL.Query()
	params := application.QueryParams{
		MachineID:      values.Get("machineId"),
		FrequencyLabel: values.Get("f"),
	}
	if channels := values.Get("channels"); channels != "" {
		for _, id := range strings.Split(channels, ",") {
			if id = strings.TrimSpace(id); id != "" {
				params.ChannelIDs = append(params.ChannelIDs, id)
			}
		}
	}
	start, err := parseInstantParam(values.Get("start"), "start")
	if err != nil {
		return params, err
	}
	params.Start = start
	end, err := parseInstantParam(values.Get("end"), "end")
	if err != nil {
		return params, err
	}
	params.End = end
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return params, telemetry.NewValidationError("limit", "must be a non-negative integer")
		}
		params.Limit = limit
	}
	return params, nil
}

func parseInstantParam(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := telemetry.ParseInstant(raw)
	if err != nil {
		return nil, telemetry.NewValidationError(field, "must be an ISO-8601 instant")
	}
	return &parsed, nil
}
