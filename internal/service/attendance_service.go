package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"attendance-reconciler/internal/model"
	"attendance-reconciler/internal/pipeline"
	"attendance-reconciler/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// HistoryStore records and serves past runs.
type HistoryStore interface {
	SaveRun(ctx context.Context, run model.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	GetRun(ctx context.Context, id string) (model.RunRecord, error)
}

// ProcessInput is one processing request.
type ProcessInput struct {
	Attendance  io.Reader `validate:"required"`
	Gradebook   io.Reader
	StartDate   string `validate:"required,datetime=2006-01-02"`
	EndDate     string `validate:"required,datetime=2006-01-02"`
	JoinMode    string `validate:"omitempty,oneof=auto id email none"`
	OutPrefix   string `validate:"max=120"`
	Matrix      bool
	Course      string `validate:"max=200"`
	RequestedBy string `validate:"max=200"`
}

// ArtifactLink points the caller at a stored artifact.
type ArtifactLink struct {
	Filename     string `json:"filename"`
	RelativePath string `json:"relative_path"`
	DownloadURL  string `json:"download_url"`
}

// ProcessResponse is returned for a successful run.
type ProcessResponse struct {
	Message           string            `json:"message"`
	RunID             string            `json:"run_id"`
	Summary           model.RunSummary  `json:"summary"`
	CountsPreview     []map[string]any  `json:"counts_preview"`
	CountsArtifact    ArtifactLink      `json:"counts_artifact"`
	MatrixArtifact    *ArtifactLink     `json:"matrix_artifact,omitempty"`
	Diagnostics       model.Diagnostics `json:"diagnostics"`
	EffectiveJoinMode model.JoinMode    `json:"effective_join_mode"`
}

// ValidationError wraps a request that failed validation or could not be read.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// IsInputError reports whether err should be surfaced to the caller as a bad request.
func IsInputError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr) || pipeline.IsInputError(err)
}

// AttendanceService runs the engine for callers and keeps the history.
type AttendanceService struct {
	store    HistoryStore
	outputs  *utils.OutputManager
	logger   *slog.Logger
	validate *validator.Validate
	opts     pipeline.Options
	newID    func() string
}

// NewAttendanceService wires a service. A nil logger falls back to slog.Default.
func NewAttendanceService(store HistoryStore, outputs *utils.OutputManager, logger *slog.Logger) *AttendanceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceService{
		store:    store,
		outputs:  outputs,
		logger:   logger,
		validate: validator.New(),
		opts:     pipeline.DefaultOptions(),
		newID:    uuid.NewString,
	}
}

type engineResult struct {
	res *pipeline.Result
	err error
}

// Process validates the input, runs the engine, writes the artifacts and
// records the run. The engine is abandoned if ctx ends first.
func (s *AttendanceService) Process(ctx context.Context, in ProcessInput) (*ProcessResponse, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, &ValidationError{Err: err}
	}
	joinMode := in.JoinMode
	if joinMode == "" {
		joinMode = string(model.JoinAuto)
	}

	runID := s.newID()
	logger := s.logger.With("run_id", runID)
	record := model.RunRecord{
		ID:          runID,
		Course:      in.Course,
		RequestedBy: in.RequestedBy,
		OutPrefix:   pipeline.SanitizePrefix(in.OutPrefix),
		JoinMode:    model.JoinMode(joinMode),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      model.RunPending,
		RunAt:       time.Now().UTC(),
	}

	req, err := buildRequest(in, model.JoinMode(joinMode))
	if err != nil {
		return nil, s.fail(logger, record, err)
	}

	// Buffered so the goroutine can finish after we stop waiting.
	done := make(chan engineResult, 1)
	go func() {
		res, err := pipeline.Run(req, s.opts)
		done <- engineResult{res: res, err: err}
	}()

	var result *pipeline.Result
	select {
	case <-ctx.Done():
		return nil, s.fail(logger, record, fmt.Errorf("processing abandoned: %w", ctx.Err()))
	case out := <-done:
		if out.err != nil {
			return nil, s.fail(logger, record, out.err)
		}
		result = out.res
	}

	record.JoinMode = result.JoinMode
	resp := &ProcessResponse{
		Message:           "Attendance processed successfully",
		RunID:             runID,
		Summary:           result.Summary,
		CountsPreview:     result.Preview,
		Diagnostics:       result.Diagnostics,
		EffectiveJoinMode: result.JoinMode,
	}

	counts, err := s.writeArtifact(runID, result.CountsArtifact)
	if err != nil {
		return nil, s.fail(logger, record, err)
	}
	resp.CountsArtifact = counts
	record.Artifacts = append(record.Artifacts, model.Artifact{Filename: counts.Filename, RelativePath: counts.RelativePath})
	if result.MatrixArtifact != nil {
		matrix, err := s.writeArtifact(runID, *result.MatrixArtifact)
		if err != nil {
			return nil, s.fail(logger, record, err)
		}
		resp.MatrixArtifact = &matrix
		record.Artifacts = append(record.Artifacts, model.Artifact{Filename: matrix.Filename, RelativePath: matrix.RelativePath})
	}

	summary := result.Summary
	record.Summary = &summary
	record.Diagnostics = result.Diagnostics
	record.Status = model.RunSuccess
	if err := s.store.SaveRun(context.WithoutCancel(ctx), record); err != nil {
		logger.Error("failed to record run", "error", err)
	}

	s.logRun(logger, result)
	return resp, nil
}

func buildRequest(in ProcessInput, joinMode model.JoinMode) (pipeline.Request, error) {
	start, err := model.ParseSession(in.StartDate)
	if err != nil {
		return pipeline.Request{}, &ValidationError{Err: fmt.Errorf("start_date: %w", err)}
	}
	end, err := model.ParseSession(in.EndDate)
	if err != nil {
		return pipeline.Request{}, &ValidationError{Err: fmt.Errorf("end_date: %w", err)}
	}
	attendance, err := pipeline.ReadTable(in.Attendance)
	if err != nil {
		return pipeline.Request{}, &ValidationError{Err: fmt.Errorf("attendance file: %w", err)}
	}
	req := pipeline.Request{
		Attendance: attendance,
		Window:     pipeline.Window{Start: start, End: end},
		JoinMode:   joinMode,
		OutPrefix:  in.OutPrefix,
		Matrix:     in.Matrix,
	}
	if in.Gradebook != nil && joinMode != model.JoinNone {
		gradebook, err := pipeline.ReadTable(in.Gradebook)
		if err != nil {
			return pipeline.Request{}, &ValidationError{Err: fmt.Errorf("gradebook file: %w", err)}
		}
		req.Gradebook = &gradebook
	}
	return req, nil
}

func (s *AttendanceService) writeArtifact(runID string, a model.Artifact) (ArtifactLink, error) {
	rel, err := s.outputs.WriteArtifact(runID, a.Filename, func(w io.Writer) error {
		return pipeline.WriteCSV(w, a.Table)
	})
	if err != nil {
		return ArtifactLink{}, err
	}
	return ArtifactLink{
		Filename:     a.Filename,
		RelativePath: rel,
		DownloadURL:  s.outputs.GetDownloadURL(runID, a.Filename),
	}, nil
}

// fail records the run as errored and returns err unchanged.
func (s *AttendanceService) fail(logger *slog.Logger, record model.RunRecord, err error) error {
	record.Status = model.RunError
	record.Notes = err.Error()
	logger.Warn("attendance run failed", "error", err)
	if saveErr := s.store.SaveRun(context.Background(), record); saveErr != nil {
		logger.Error("failed to record run", "error", saveErr)
	}
	return err
}

func (s *AttendanceService) logRun(logger *slog.Logger, res *pipeline.Result) {
	for _, st := range res.Stages {
		logger.Debug("stage finished", "stage", st.Stage, "records", st.Records, "duration", st.Duration)
	}
	maxAttended := 0
	for _, st := range res.Students {
		maxAttended = max(maxAttended, st.AttendedCount)
	}
	logger.Info("attendance run complete",
		"join_mode", res.JoinMode,
		"rows", len(res.Outcomes),
		"lecture_dates", len(res.Summary.LectureDates),
		"students", res.Summary.StudentsTotal,
		"students_with_attendance", res.Summary.StudentsWithAttendance,
		"coverage_pct", res.Summary.CoveragePct,
		"max_attended", maxAttended,
		"skipped_rows", res.Diagnostics.SkippedRows,
		"ambiguous", res.Diagnostics.AmbiguousCount,
		"unmatched", res.Diagnostics.UnmatchedCount,
	)
}

// History lists recent runs.
func (s *AttendanceService) History(ctx context.Context, limit int) ([]model.RunRecord, error) {
	return s.store.ListRuns(ctx, limit)
}

// GetRun fetches one run.
func (s *AttendanceService) GetRun(ctx context.Context, id string) (model.RunRecord, error) {
	return s.store.GetRun(ctx, id)
}

// ArtifactPath resolves a stored artifact for download.
func (s *AttendanceService) ArtifactPath(runID, fileName string) (string, error) {
	return s.outputs.ResolveArtifact(runID, fileName)
}

// ContentType reports the download content type for a file name.
func (s *AttendanceService) ContentType(fileName string) string {
	return s.outputs.GetContentType(fileName)
}
