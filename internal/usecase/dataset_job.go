package usecase

import (
	"context"
	"fmt"

	"daytrade/internal/domain/models"
	applogger "daytrade/pkg/logger"
	"daytrade/pkg/queue"
)

// DatasetBuildMessageType routes async build requests to their job.
const DatasetBuildMessageType = "dataset.build"

// DatasetBuildJob runs dataset builds from the background queue so the
// HTTP layer can accept a request and return immediately.
type DatasetBuildJob struct {
	builder *DatasetBuilder
	logger  *applogger.Logger
}

// NewDatasetBuildJob creates the queue job.
func NewDatasetBuildJob(builder *DatasetBuilder, l *applogger.Logger) *DatasetBuildJob {
	return &DatasetBuildJob{builder: builder, logger: l}
}

func (j *DatasetBuildJob) Name() string { return "dataset_build" }
func (j *DatasetBuildJob) Type() string { return DatasetBuildMessageType }

func (j *DatasetBuildJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[models.BuildDatasetRequest](payload)
	if err != nil {
		return fmt.Errorf("dataset build job: %w", err)
	}

	result, err := j.builder.Build(ctx, req)
	if err != nil {
		return fmt.Errorf("dataset build job: %w", err)
	}

	j.logger.Info("background dataset build finished",
		applogger.String("run_id", result.Info.RunID),
		applogger.Int("rows", result.Info.NumRows))
	return nil
}
