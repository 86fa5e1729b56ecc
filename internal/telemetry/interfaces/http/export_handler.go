package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	application "garden-cloud/internal/telemetry/application"
)

// ExportHandler serves query results as downloadable files.
type ExportHandler struct {
	service *application.QueryService
}

// NewExportHandler constructs a handler.
func NewExportHandler(service *application.QueryService) (*ExportHandler, error) {
	if service == nil {
		return nil, errors.New("export handler: nil service")
	}
	return &ExportHandler{service: service}, nil
}

// ServeHTTP handles GET /api/exports/readings.{csv,xlsx,pdf}. The query
// string takes the same filters as /api/data/query/.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	format := strings.TrimPrefix(r.URL.Path, "/api/exports/readings.")
	if format == r.URL.Path {
		w.WriteHeader(http.StatusNotFound)
		return
	}

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

	var payload []byte
	var contentType string
	switch format {
	case "csv":
		payload, err = BuildReadingsCSV(records)
		contentType = "text/csv"
	case "xlsx":
		payload, err = BuildReadingsXLSX(records)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		payload, err = BuildReadingsPDF(params.MachineID, records)
		contentType = "application/pdf"
	default:
		writeError(w, http.StatusNotFound, "unknown export format", format)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed", err.Error())
		return
	}

	filename := fmt.Sprintf("readings-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
