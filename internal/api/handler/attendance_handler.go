package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"attendance-reconciler/internal/model"
	"attendance-reconciler/internal/service"
	"attendance-reconciler/internal/store"
	"attendance-reconciler/pkg/utils"
)

const (
	maxUploadBytes      = 32 << 20
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HistoryResponse wraps the run list.
type HistoryResponse struct {
	Items []model.RunRecord `json:"items"`
}

// AttendanceHandler serves the attendance HTTP API.
type AttendanceHandler struct {
	svc       *service.AttendanceService
	appName   string
	apiPrefix string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewAttendanceHandler creates the handler. apiPrefix is used to pull path
// parameters out of wildcard routes.
func NewAttendanceHandler(svc *service.AttendanceService, appName, apiPrefix string, timeout time.Duration, logger *slog.Logger) *AttendanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceHandler{
		svc:       svc,
		appName:   appName,
		apiPrefix: strings.TrimRight(apiPrefix, "/"),
		timeout:   timeout,
		logger:    logger,
	}
}

// Health reports that the service is up
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "Service is up"
// @Router /health [get]
func (h *AttendanceHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": h.appName,
		"time":    time.Now().UTC(),
	})
}

// Process runs one attendance reconciliation
// @Summary Process attendance
// @Description Join an attendance export with an optional gradebook and count sessions attended per student.
// @Tags attendance
// @Accept multipart/form-data
// @Produce json
// @Param attendance_file formData file true "Attendance CSV"
// @Param gradebook_file formData file false "Gradebook CSV"
// @Param start_date formData string true "Window start (YYYY-MM-DD)"
// @Param end_date formData string true "Window end (YYYY-MM-DD)"
// @Param out_prefix formData string false "Artifact name prefix"
// @Param join_mode formData string false "Join mode" Enums(auto, id, email, none)
// @Param matrix formData bool false "Also build the presence matrix (default true)"
// @Param course formData string false "Course label recorded with the run"
// @Param requested_by formData string false "Who asked for the run"
// @Success 200 {object} service.ProcessResponse
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Failure 504 {object} ErrorResponse "Processing timed out"
// @Router /attendance/process [post]
func (h *AttendanceHandler) Process(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	attendance, _, err := r.FormFile("attendance_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "attendance_file is required")
		return
	}
	defer attendance.Close()

	in := service.ProcessInput{
		Attendance:  attendance,
		StartDate:   strings.TrimSpace(r.FormValue("start_date")),
		EndDate:     strings.TrimSpace(r.FormValue("end_date")),
		JoinMode:    strings.ToLower(strings.TrimSpace(r.FormValue("join_mode"))),
		OutPrefix:   r.FormValue("out_prefix"),
		Matrix:      utils.ParseBool(r.FormValue("matrix"), true),
		Course:      r.FormValue("course"),
		RequestedBy: strings.TrimSpace(r.FormValue("requested_by")),
	}
	if gradebook, _, err := r.FormFile("gradebook_file"); err == nil {
		defer gradebook.Close()
		in.Gradebook = gradebook
	} else if !errors.Is(err, http.ErrMissingFile) {
		writeError(w, http.StatusBadRequest, "invalid gradebook_file: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.svc.Process(ctx, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListHistory returns recent runs
// @Summary List runs
// @Tags history
// @Produce json
// @Param limit query int false "Maximum runs to return"
// @Success 200 {object} HistoryResponse
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /history [get]
func (h *AttendanceHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := utils.ParseLimit(r.URL.Query().Get("limit"), defaultHistoryLimit, maxHistoryLimit)
	runs, err := h.svc.History(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Items: runs})
}

// GetHistory returns a single run
// @Summary Get run
// @Tags history
// @Produce json
// @Param run_id path string true "Run ID"
// @Success 200 {object} model.RunRecord
// @Failure 404 {object} ErrorResponse "Run not found"
// @Router /history/{run_id} [get]
func (h *AttendanceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	params := h.pathParams(r, "/history/")
	if len(params) != 1 || params[0] == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}
	run, err := h.svc.GetRun(r.Context(), params[0])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Download streams a stored artifact
// @Summary Download artifact
// @Tags attendance
// @Produce text/csv
// @Param run_id path string true "Run ID"
// @Param filename path string true "Artifact file name"
// @Success 200 {file} file
// @Failure 404 {object} ErrorResponse "Artifact not found"
// @Router /download/{run_id}/{filename} [get]
func (h *AttendanceHandler) Download(w http.ResponseWriter, r *http.Request) {
	params := h.pathParams(r, "/download/")
	if len(params) != 2 {
		writeError(w, http.StatusBadRequest, "run id and file name are required")
		return
	}
	runID, fileName := params[0], params[1]
	path, err := h.svc.ArtifactPath(runID, fileName)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", h.svc.ContentType(fileName))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(fileName)+`"`)
	http.ServeFile(w, r, path)
}

// pathParams returns the path segments after apiPrefix+base.
func (h *AttendanceHandler) pathParams(r *http.Request, base string) []string {
	rest, ok := strings.CutPrefix(r.URL.Path, h.apiPrefix+base)
	if !ok {
		return nil
	}
	return strings.Split(strings.Trim(rest, "/"), "/")
}

func (h *AttendanceHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case service.IsInputError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "processing timed out")
	case errors.Is(err, store.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case errors.Is(err, utils.ErrInvalidFileName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, "file not found")
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
