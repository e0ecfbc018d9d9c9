// Package classify drives the asynchronous classification pipeline.
// Assets advance pending -> processing -> {completed | failed}; the only
// way back is the operator retry, which resets failed assets to pending.
// Classification is idempotent by overwrite, so concurrent retries on
// the same asset cost at most a redundant inference call.
package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/metrics"
)

const releaseTimeout = 30 * time.Second

// Config holds pipeline settings.
type Config struct {
	// Workers bounds concurrent inference calls.
	Workers int
	// Timeout bounds one classification attempt; hitting it fails the asset.
	Timeout time.Duration
}

// Service runs classification jobs on a bounded worker pool.
type Service struct {
	assets     AssetStore
	classifier Classifier
	pool       *ants.Pool
	cfg        Config
	logger     *zap.Logger
}

// New creates the pipeline and its worker pool.
func New(assets AssetStore, classifier Classifier, cfg Config, logger *zap.Logger) (*Service, error) {
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Service{
		assets:     assets,
		classifier: classifier,
		pool:       pool,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Enqueue schedules one asset for classification. The upload request
// returns immediately; the job runs whenever a worker frees up.
func (s *Service) Enqueue(id string) error {
	err := s.pool.Submit(func() {
		s.process(context.Background(), id)
	})
	if err != nil {
		return fmt.Errorf("submit classification job: %w", err)
	}
	return nil
}

// RetryFailed resets every failed asset to pending and re-enqueues it.
// Returns how many assets re-entered the pipeline.
func (s *Service) RetryFailed(ctx context.Context) (int, error) {
	ids, err := s.assets.ResetFailed(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset failed assets: %w", err)
	}

	for _, id := range ids {
		if err := s.Enqueue(id); err != nil {
			s.logger.Warn("re-enqueue asset", zap.String("asset_id", id), zap.Error(err))
		}
	}
	return len(ids), nil
}

// Close stops accepting jobs and waits for in-flight workers.
func (s *Service) Close() {
	if err := s.pool.ReleaseTimeout(releaseTimeout); err != nil {
		s.logger.Warn("release worker pool", zap.Error(err))
	}
}

func (s *Service) process(ctx context.Context, id string) {
	if err := s.assets.BeginProcessing(ctx, id); err != nil {
		// Another worker already claimed the asset, or it was never
		// pending. Either way there is nothing to do.
		if errors.Is(err, domain.ErrInvalidTransition) {
			s.logger.Debug("asset not pending, skipping", zap.String("asset_id", id))
			return
		}
		s.logger.Warn("begin processing", zap.String("asset_id", id), zap.Error(err))
		return
	}

	asset, err := s.assets.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("load asset", zap.String("asset_id", id), zap.Error(err))
		s.fail(ctx, id)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	result, err := s.classifier.Classify(cctx, asset)
	cancel()

	if err != nil {
		var cerr *domain.ClassificationError
		if errors.As(err, &cerr) {
			s.logger.Warn("classification failed",
				zap.String("asset_id", id),
				zap.String("code", string(cerr.Code)),
				zap.Bool("retryable", cerr.Retryable),
				zap.Error(err))
		} else {
			s.logger.Warn("classification failed", zap.String("asset_id", id), zap.Error(err))
		}
		s.fail(ctx, id)
		return
	}

	if err := s.assets.CompleteClassification(ctx, id, result); err != nil {
		s.logger.Warn("persist classification", zap.String("asset_id", id), zap.Error(err))
		return
	}
	metrics.ClassificationsTotal.WithLabelValues("completed").Inc()
	s.logger.Info("asset classified",
		zap.String("asset_id", id),
		zap.Float64("confidence", result.Confidence))
}

func (s *Service) fail(ctx context.Context, id string) {
	metrics.ClassificationsTotal.WithLabelValues("failed").Inc()
	if err := s.assets.FailClassification(ctx, id); err != nil {
		s.logger.Warn("mark asset failed", zap.String("asset_id", id), zap.Error(err))
	}
}
