package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trckr/apiserver/internal/apperr"
	"github.com/trckr/apiserver/internal/events"
	"github.com/trckr/apiserver/internal/progress"
	"github.com/trckr/apiserver/types"
)

const (
	purposeSummary = "summary"
	purposeExport  = "export"

	exportTimeLayout = "20060102T150405Z"
)

// ObjectWriter stores JSON documents in a bucket.
type ObjectWriter interface {
	PutJSON(ctx context.Context, key string, value any) error
	Bucket() string
}

// ArchiveRecorder receives object write outcomes, typically for metrics.
type ArchiveRecorder interface {
	ObserveObjectWritten(purpose string, err error)
}

type nopArchiveRecorder struct{}

func (nopArchiveRecorder) ObserveObjectWritten(string, error) {}

// ExportResult locates a written export.
type ExportResult struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Workouts int    `json:"workouts"`
}

// ExportDocument is the JSON body of a workout export.
type ExportDocument struct {
	UserID     string             `json:"user_id"`
	ExportedAt time.Time          `json:"exported_at"`
	Stats      types.WorkoutStats `json:"stats"`
	Workouts   []types.Workout    `json:"workouts"`
}

// ArchiveService writes daily summaries and workout exports to object storage.
type ArchiveService struct {
	progress *ProgressService
	workouts WorkoutLister
	storage  ObjectWriter
	clock    Clock
	recorder ArchiveRecorder
	logger   *zap.Logger
}

func NewArchiveService(progress *ProgressService, workouts WorkoutLister, storage ObjectWriter, clock Clock, recorder ArchiveRecorder, logger *zap.Logger) *ArchiveService {
	if recorder == nil {
		recorder = nopArchiveRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveService{
		progress: progress,
		workouts: workouts,
		storage:  storage,
		clock:    clock,
		recorder: recorder,
		logger:   logger,
	}
}

// SummaryKey is the object key of a user's archived day.
func SummaryKey(userID string, date types.Date) string {
	return fmt.Sprintf("summaries/%s/%s.json", userID, date)
}

// ExportKey is the object key of one export.
func ExportKey(userID string, at time.Time, id string) string {
	return fmt.Sprintf("exports/%s/%s-%s.json", userID, at.UTC().Format(exportTimeLayout), id)
}

// ArchiveDay recomputes and overwrites the stored summary for one day.
func (s *ArchiveService) ArchiveDay(ctx context.Context, userID string, date types.Date) (string, error) {
	if s.storage == nil {
		return "", storageDisabled()
	}
	summary, err := s.progress.DailySummary(ctx, userID, date)
	if err != nil {
		return "", err
	}

	key := SummaryKey(userID, date)
	err = s.storage.PutJSON(ctx, key, summary)
	s.recorder.ObserveObjectWritten(purposeSummary, err)
	if err != nil {
		return "", apperr.Internal("Failed to archive daily summary", err)
	}
	return key, nil
}

// HandleEvent archives every day a workout event touched.
func (s *ArchiveService) HandleEvent(ctx context.Context, event events.WorkoutEvent) error {
	for _, date := range event.Dates() {
		key, err := s.ArchiveDay(ctx, event.UserID, date)
		if err != nil {
			return err
		}
		s.logger.Debug("archived daily summary",
			zap.String("event_id", event.ID),
			zap.String("user_id", event.UserID),
			zap.String("key", key),
		)
	}
	return nil
}

// Export writes all of the user's workouts with their totals as one document.
func (s *ArchiveService) Export(ctx context.Context, userID string) (ExportResult, error) {
	if s.storage == nil {
		return ExportResult{}, storageDisabled()
	}
	workouts, err := s.workouts.ListByUser(ctx, userID)
	if err != nil {
		return ExportResult{}, wrapStoreErr(err, "Failed to load workouts")
	}

	now := s.clock.now()
	doc := ExportDocument{
		UserID:     userID,
		ExportedAt: now.UTC(),
		Stats:      progress.Summarize(workouts, types.DateOf(now, s.clock.location())),
		Workouts:   workouts,
	}

	key := ExportKey(userID, now, uuid.NewString())
	err = s.storage.PutJSON(ctx, key, doc)
	s.recorder.ObserveObjectWritten(purposeExport, err)
	if err != nil {
		return ExportResult{}, apperr.Internal("Failed to write export", err)
	}

	s.logger.Info("workouts exported", zap.String("user_id", userID), zap.String("key", key), zap.Int("workouts", len(workouts)))
	return ExportResult{Bucket: s.storage.Bucket(), Key: key, Workouts: len(workouts)}, nil
}

func storageDisabled() error {
	return apperr.Configuration("Object storage is not configured", nil)
}
