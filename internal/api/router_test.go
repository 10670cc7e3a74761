package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"attendance-reconciler/internal/api/handler"
	"attendance-reconciler/internal/model"
	"attendance-reconciler/internal/service"
	"attendance-reconciler/internal/store"
	"attendance-reconciler/pkg/router"
	"attendance-reconciler/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefix = "/api/v1"

func newTestServer(t *testing.T) *router.Router {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	history, err := store.Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	svc := service.NewAttendanceService(history, utils.NewOutputManager(filepath.Join(dir, "outputs"), prefix), logger)
	h := handler.NewAttendanceHandler(svc, "Attendance Automator API", prefix, time.Minute, logger)

	r := router.New(logger)
	RegisterRoutes(r, h, prefix)
	return r
}

func multipartBody(t *testing.T, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(name, name+".csv")
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	r := newTestServer(t)
	rec := do(r, httptest.NewRequest(http.MethodGet, prefix+"/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestProcessHistoryAndDownload(t *testing.T) {
	r := newTestServer(t)

	body, contentType := multipartBody(t,
		map[string]string{
			"attendance_file": "Timestamp,Email\n2024-01-08 09:00:00,alice@x.edu\n2024-01-10 09:00:00,alice@x.edu\n",
			"gradebook_file":  "Student,ID,Email\nAlice,A100,alice@x.edu\n",
		},
		map[string]string{
			"start_date":   "2024-01-01",
			"end_date":     "2024-01-15",
			"out_prefix":   "CSE20",
			"join_mode":    "auto",
			"requested_by": "ta@x.edu",
		})
	req := httptest.NewRequest(http.MethodPost, prefix+"/attendance/process", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp service.ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"2024-01-08", "2024-01-10"}, resp.Summary.LectureDates)
	assert.Equal(t, 100.0, resp.Summary.CoveragePct)
	require.Len(t, resp.CountsPreview, 1)
	assert.Equal(t, "A100", resp.CountsPreview[0]["student_id"])
	require.NotNil(t, resp.MatrixArtifact, "matrix is built unless turned off")

	rec = do(r, httptest.NewRequest(http.MethodGet, resp.CountsArtifact.DownloadURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "student_id,email,student,attended_count,percentage\nA100,alice@x.edu,Alice,2,100.00\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "CSE20_counts.csv")

	rec = do(r, httptest.NewRequest(http.MethodGet, prefix+"/history/"+resp.RunID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var run model.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, model.RunSuccess, run.Status)
	assert.Equal(t, "ta@x.edu", run.RequestedBy)
	assert.Len(t, run.Artifacts, 2)

	rec = do(r, httptest.NewRequest(http.MethodGet, prefix+"/history?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var history handler.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Items, 1)
	assert.Equal(t, resp.RunID, history.Items[0].ID)
	assert.Equal(t, "ta@x.edu", history.Items[0].RequestedBy)
}

func TestProcessMatrixCanBeTurnedOff(t *testing.T) {
	r := newTestServer(t)

	body, contentType := multipartBody(t,
		map[string]string{"attendance_file": "Timestamp,Email\n2024-01-08 09:00:00,alice@x.edu\n"},
		map[string]string{"start_date": "2024-01-01", "end_date": "2024-01-15", "matrix": "false"})
	req := httptest.NewRequest(http.MethodPost, prefix+"/attendance/process", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp service.ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.MatrixArtifact)
}

func TestHistoryIsWrappedWhenEmpty(t *testing.T) {
	r := newTestServer(t)
	rec := do(r, httptest.NewRequest(http.MethodGet, prefix+"/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestProcessErrorMapping(t *testing.T) {
	r := newTestServer(t)

	tests := []struct {
		name     string
		files    map[string]string
		fields   map[string]string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "missing attendance file",
			fields:   map[string]string{"start_date": "2024-01-01", "end_date": "2024-01-15"},
			wantCode: http.StatusBadRequest,
			wantMsg:  "attendance_file is required",
		},
		{
			name:     "reversed window",
			files:    map[string]string{"attendance_file": "Timestamp,Email\n2024-01-08 09:00:00,a@x.edu\n"},
			fields:   map[string]string{"start_date": "2024-02-01", "end_date": "2024-01-15"},
			wantCode: http.StatusBadRequest,
			wantMsg:  "after end date",
		},
		{
			name: "gradebook without email column",
			files: map[string]string{
				"attendance_file": "Timestamp,Email\n2024-01-08 09:00:00,a@x.edu\n",
				"gradebook_file":  "Student,ID\nA,A1\n",
			},
			fields:   map[string]string{"start_date": "2024-01-01", "end_date": "2024-01-15"},
			wantCode: http.StatusBadRequest,
			wantMsg:  "email column",
		},
		{
			name:     "bad join mode",
			files:    map[string]string{"attendance_file": "Timestamp,Email\n2024-01-08 09:00:00,a@x.edu\n"},
			fields:   map[string]string{"start_date": "2024-01-01", "end_date": "2024-01-15", "join_mode": "fuzzy"},
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.files, tt.fields)
			req := httptest.NewRequest(http.MethodPost, prefix+"/attendance/process", body)
			req.Header.Set("Content-Type", contentType)
			rec := do(r, req)
			assert.Equal(t, tt.wantCode, rec.Code)
			var errResp handler.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
			assert.NotEmpty(t, errResp.Error)
			if tt.wantMsg != "" {
				assert.Contains(t, errResp.Error, tt.wantMsg)
			}
		})
	}
}

func TestNotFoundResponses(t *testing.T) {
	r := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(r, httptest.NewRequest(http.MethodGet, prefix+"/history/missing", nil)).Code)
	assert.Equal(t, http.StatusNotFound, do(r, httptest.NewRequest(http.MethodGet, prefix+"/download/missing/x.csv", nil)).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(r, httptest.NewRequest(http.MethodGet, prefix+"/attendance/process", nil)).Code)
}
