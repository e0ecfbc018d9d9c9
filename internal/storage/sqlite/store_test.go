package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "assetdex.db")
	store, err := NewStore(Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func seedSite(t *testing.T, store *Store, id string) {
	t.Helper()
	require.NoError(t, store.Sites().Create(context.Background(), &domain.Site{
		ID:        id,
		Name:      "Site " + id,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}))
}

func seedAsset(t *testing.T, store *Store, siteID, fileName string, mutate ...func(*domain.Asset)) *domain.Asset {
	t.Helper()

	now := time.Now().UTC()
	a := &domain.Asset{
		ID:          uuid.NewString(),
		FileName:    fileName,
		DisplayName: fileName,
		StorageKey:  "store/" + fileName,
		MimeType:    "image/jpeg",
		SizeBytes:   1024,
		Category:    domain.CategoryPhoto,
		SiteID:      siteID,
		UploaderID:  "u1",
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, m := range mutate {
		m(a)
	}
	require.NoError(t, store.Assets().Create(context.Background(), a))
	return a
}

func TestAssetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSite(t, store, "s1")

	desc := "kitchen with marble counters"
	conf := 0.92
	created := seedAsset(t, store, "s1", "kitchen.jpg", func(a *domain.Asset) {
		a.Status = domain.StatusCompleted
		a.Description = &desc
		a.Tags = []string{"kitchen", "marble"}
		a.Confidence = &conf
		a.Metadata = map[string]any{"room_type": "kitchen"}
	})

	got, err := store.Assets().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.FileName, got.FileName)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)
	assert.Equal(t, []string{"kitchen", "marble"}, got.Tags)
	require.NotNil(t, got.Confidence)
	assert.InDelta(t, conf, *got.Confidence, 1e-9)
	assert.Equal(t, "kitchen", got.Metadata["room_type"])

	_, err = store.Assets().GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)
}

func TestStructuredSearchScopesToSites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSite(t, store, "s1")
	seedSite(t, store, "s2")

	inScope := seedAsset(t, store, "s1", "facade.jpg")
	seedAsset(t, store, "s2", "facade.jpg")

	results, total, err := store.Assets().StructuredSearch(ctx, storage.AssetFilter{
		SiteIDs: []string{"s1"},
		Limit:   20,
		Page:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, inScope.ID, results[0].ID)

	// An empty site scope matches nothing.
	results, total, err = store.Assets().StructuredSearch(ctx, storage.AssetFilter{
		Limit: 20,
		Page:  1,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, results)
}

func TestStructuredSearchTermsAndFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSite(t, store, "s1")

	match := seedAsset(t, store, "s1", "bathroom-render.png", func(a *domain.Asset) {
		a.Category = domain.CategoryRender
		a.MimeType = "image/png"
	})
	seedAsset(t, store, "s1", "bathroom-photo.jpg")
	seedAsset(t, store, "s1", "garden.jpg")

	results, total, err := store.Assets().StructuredSearch(ctx, storage.AssetFilter{
		SiteIDs:    []string{"s1"},
		Terms:      []string{"bathroom"},
		Categories: []domain.Category{domain.CategoryRender},
		Limit:      20,
		Page:       1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, match.ID, results[0].ID)

	// Term matching is case-insensitive and spans tags.
	tagged := seedAsset(t, store, "s1", "IMG_0042.jpg", func(a *domain.Asset) {
		a.Tags = []string{"Terrace"}
	})
	results, _, err = store.Assets().StructuredSearch(ctx, storage.AssetFilter{
		SiteIDs: []string{"s1"},
		Terms:   []string{"terrace"},
		Limit:   20,
		Page:    1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, tagged.ID, results[0].ID)
}

func TestLexicalSearchRanksByMatchedTerms(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSite(t, store, "s1")

	both := seedAsset(t, store, "s1", "modern-kitchen.jpg", func(a *domain.Asset) {
		d := "modern kitchen island"
		a.Description = &d
	})
	one := seedAsset(t, store, "s1", "kitchen-old.jpg")
	seedAsset(t, store, "s1", "garage.jpg")

	results, total, err := store.Assets().LexicalSearch(ctx,
		[]string{"kitchen", "modern"},
		storage.AssetFilter{SiteIDs: []string{"s1"}, Limit: 20, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, results, 2)
	assert.Equal(t, both.ID, results[0].ID)
	assert.Equal(t, one.ID, results[1].ID)
}

func TestClassificationTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSite(t, store, "s1")
	a := seedAsset(t, store, "s1", "plan.pdf")

	repo := store.Assets()

	// completed is unreachable before processing
	err := repo.CompleteClassification(ctx, a.ID, domain.ClassificationResult{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	require.NoError(t, repo.BeginProcessing(ctx, a.ID))
	assert.ErrorIs(t, repo.BeginProcessing(ctx, a.ID), domain.ErrInvalidTransition)

	require.NoError(t, repo.FailClassification(ctx, a.ID))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)

	ids, err := repo.ResetFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, ids)

	got, err = repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)

	// second retry with nothing failed is a no-op
	ids, err = repo.ResetFailed(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCompleteClassificationPersistsResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSite(t, store, "s1")
	a := seedAsset(t, store, "s1", "livingroom.jpg")

	repo := store.Assets()
	require.NoError(t, repo.BeginProcessing(ctx, a.ID))
	require.NoError(t, repo.CompleteClassification(ctx, a.ID, domain.ClassificationResult{
		Description: "sunny living room",
		Tags:        []string{"living room", "sofa"},
		Confidence:  0.88,
		RoomType:    "living room",
	}))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.Description)
	assert.Equal(t, "sunny living room", *got.Description)
	assert.Equal(t, []string{"living room", "sofa"}, got.Tags)
	assert.Equal(t, "living room", got.Metadata["room_type"])
}

func TestDescribedCandidates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSite(t, store, "s1")

	described := seedAsset(t, store, "s1", "done.jpg", func(a *domain.Asset) {
		a.Status = domain.StatusCompleted
		d := "white hallway"
		a.Description = &d
	})
	seedAsset(t, store, "s1", "pending.jpg")
	seedAsset(t, store, "s1", "empty-desc.jpg", func(a *domain.Asset) {
		a.Status = domain.StatusCompleted
	})

	candidates, err := store.Assets().DescribedCandidates(ctx, []string{"s1"}, 100)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, described.ID, candidates[0].ID)

	candidates, err = store.Assets().DescribedCandidates(ctx, nil, 100)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestGrantUpsertAndLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSite(t, store, "s1")
	require.NoError(t, store.Users().Create(ctx, &domain.User{ID: "u1"}))

	grants := store.Grants()
	require.NoError(t, grants.Upsert(ctx, domain.Grant{
		UserID: "u1", SiteID: "s1", CanView: true,
	}))
	require.NoError(t, grants.Upsert(ctx, domain.Grant{
		UserID: "u1", SiteID: "s1", CanView: true, CanUpload: true,
	}))

	got, err := grants.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.True(t, got.CanUpload)

	all, err := grants.ForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, grants.Delete(ctx, "u1", "s1"))
	assert.ErrorIs(t, grants.Delete(ctx, "u1", "s1"), domain.ErrNotFound)
	_, err = grants.Get(ctx, "u1", "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuditLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	audit := store.Audit()
	base := time.Now().UTC()
	for i, q := range []string{"kitchen", "Kitchen", "garden"} {
		require.NoError(t, audit.Insert(ctx, &domain.SearchRecord{
			ID:          uuid.NewString(),
			UserID:      "u1",
			RawQuery:    q,
			ResultCount: i,
			Tier:        "structured",
			Latency:     12 * time.Millisecond,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := audit.Recent(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "garden", recent[0].RawQuery)
	assert.Equal(t, 12*time.Millisecond, recent[0].Latency)

	popular, err := audit.Popular(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, domain.PopularQuery{Query: "kitchen", Count: 2}, popular[0])
}

func TestSuggestTerms(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSite(t, store, "s1")

	seedAsset(t, store, "s1", "kitchen-north.jpg", func(a *domain.Asset) {
		a.Tags = []string{"kitchen island"}
	})

	terms, err := store.Suggestions().SuggestTerms(ctx, "kitchen", []string{"s1"}, 20)
	require.NoError(t, err)
	assert.Contains(t, terms, "kitchen-north.jpg")
	assert.Contains(t, terms, "kitchen island")

	terms, err = store.Suggestions().SuggestTerms(ctx, "kitchen", nil, 20)
	require.NoError(t, err)
	assert.Empty(t, terms)
}
