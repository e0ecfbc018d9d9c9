// Package assets registers uploaded asset metadata and serves
// permission-gated reads. The raw blob is handled by the upload
// collaborator; registration only records the storage key and kicks off
// classification.
package assets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assetdex/internal/domain"
)

// RegisterRequest carries the metadata of one uploaded asset.
type RegisterRequest struct {
	FileName    string
	DisplayName string
	StorageKey  string
	MimeType    string
	SizeBytes   int64
	Category    domain.Category
	SiteID      string
	UploaderID  string
}

// Service handles asset registration and reads.
type Service struct {
	repo    Repository
	perms   PermissionChecker
	enqueue Enqueuer
	logger  *zap.Logger
}

// New creates an asset service.
func New(repo Repository, perms PermissionChecker, enqueue Enqueuer, logger *zap.Logger) *Service {
	return &Service{repo: repo, perms: perms, enqueue: enqueue, logger: logger}
}

// Register persists the asset in pending state and enqueues its
// classification. Uploading to a site the principal cannot upload to
// resolves to not-found, never to a hint the site exists.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.Asset, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}

	if access := s.perms.Check(ctx, req.UploaderID, req.SiteID); !access.CanUpload {
		return nil, fmt.Errorf("site %q: %w", req.SiteID, domain.ErrNotFound)
	}

	now := time.Now().UTC()
	asset := &domain.Asset{
		ID:          uuid.NewString(),
		FileName:    req.FileName,
		DisplayName: req.DisplayName,
		StorageKey:  req.StorageKey,
		MimeType:    req.MimeType,
		SizeBytes:   req.SizeBytes,
		Category:    req.Category,
		SiteID:      req.SiteID,
		UploaderID:  req.UploaderID,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}

	if err := s.enqueue.Enqueue(asset.ID); err != nil {
		// The asset is registered either way; it stays pending until an
		// operator retry or restart re-enqueues it.
		s.logger.Warn("enqueue classification",
			zap.String("asset_id", asset.ID), zap.Error(err))
	}

	return asset, nil
}

// Get returns one asset if the principal may view its site.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Asset, error) {
	asset, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if access := s.perms.Check(ctx, userID, asset.SiteID); !access.CanView {
		return nil, domain.ErrAssetNotFound
	}
	return asset, nil
}

func validate(req *RegisterRequest) error {
	switch {
	case req.FileName == "":
		return fmt.Errorf("%w: file name is required", domain.ErrValidation)
	case req.StorageKey == "":
		return fmt.Errorf("%w: storage key is required", domain.ErrValidation)
	case req.MimeType == "":
		return fmt.Errorf("%w: mime type is required", domain.ErrValidation)
	case req.SiteID == "":
		return fmt.Errorf("%w: site id is required", domain.ErrValidation)
	}

	if req.DisplayName == "" {
		req.DisplayName = req.FileName
	}
	if req.Category == "" {
		req.Category = domain.CategoryOther
	} else if _, ok := domain.ParseCategory(string(req.Category)); !ok {
		return fmt.Errorf("%w: unknown category %q", domain.ErrValidation, req.Category)
	}
	return nil
}
