package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.User{},
		&types.Funnel{},
		&types.SectionDocument{},
		&types.SectionLock{},
		&types.GenerationJob{},
		&types.AICallLog{},
	))
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestCreateNewVersionFlipsCurrent(t *testing.T) {
	db := openTestDB(t)
	repo := NewSectionDocumentRepo(db, logger.NewNop())
	ctx := context.Background()
	funnelID := uuid.New()

	v1, err := repo.CreateNewVersion(ctx, funnelID, "offer", []byte(`{"name":"first"}`), "prompt-1", nil)
	require.NoError(t, err)
	require.Equal(t, 1, v1.Version)
	require.True(t, v1.IsCurrent)
	require.Equal(t, types.SectionStatusGenerated, v1.Status)

	v2, err := repo.CreateNewVersion(ctx, funnelID, "offer", []byte(`{"name":"second"}`), "prompt-2", nil)
	require.NoError(t, err)
	require.Equal(t, 2, v2.Version)

	current, err := repo.GetCurrent(ctx, nil, funnelID, "offer")
	require.NoError(t, err)
	require.Equal(t, v2.ID, current.ID)

	history, err := repo.GetHistory(ctx, nil, funnelID, "offer")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 2, history[0].Version)
	require.False(t, history[1].IsCurrent)
}

func TestCreateNewVersionIsolatedPerSection(t *testing.T) {
	db := openTestDB(t)
	repo := NewSectionDocumentRepo(db, logger.NewNop())
	ctx := context.Background()
	funnelID := uuid.New()

	_, err := repo.CreateNewVersion(ctx, funnelID, "offer", []byte(`{}`), "", nil)
	require.NoError(t, err)
	v, err := repo.CreateNewVersion(ctx, funnelID, "message", []byte(`{}`), "", nil)
	require.NoError(t, err)
	require.Equal(t, 1, v.Version, "version counters are per (funnel, section)")
}

func TestUpdateCurrentStatus(t *testing.T) {
	db := openTestDB(t)
	repo := NewSectionDocumentRepo(db, logger.NewNop())
	ctx := context.Background()
	funnelID := uuid.New()

	_, err := repo.CreateNewVersion(ctx, funnelID, "offer", []byte(`{}`), "", nil)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateCurrentStatus(ctx, nil, funnelID, "offer", types.SectionStatusApproved))
	current, err := repo.GetCurrent(ctx, nil, funnelID, "offer")
	require.NoError(t, err)
	require.Equal(t, types.SectionStatusApproved, current.Status)

	err = repo.UpdateCurrentStatus(ctx, nil, funnelID, "missing", types.SectionStatusApproved)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSectionLockClaimAndConflict(t *testing.T) {
	db := openTestDB(t)
	repo := NewSectionLockRepo(db, logger.NewNop())
	ctx := context.Background()
	funnelID := uuid.New()

	require.NoError(t, repo.Claim(ctx, funnelID, "offer", uuid.New(), 10*time.Minute))

	err := repo.Claim(ctx, funnelID, "offer", uuid.New(), 10*time.Minute)
	require.ErrorIs(t, err, ErrLockHeld)

	// A different section is an independent lock.
	require.NoError(t, repo.Claim(ctx, funnelID, "message", uuid.New(), 10*time.Minute))

	require.NoError(t, repo.Release(ctx, funnelID, "offer"))
	require.NoError(t, repo.Claim(ctx, funnelID, "offer", uuid.New(), 10*time.Minute))
}

func TestSectionLockStaleReclaim(t *testing.T) {
	db := openTestDB(t)
	repo := NewSectionLockRepo(db, logger.NewNop())
	ctx := context.Background()
	funnelID := uuid.New()

	// Plant a lock from a worker that died an hour ago.
	stale := &types.SectionLock{
		ID:        uuid.New(),
		FunnelID:  funnelID,
		SectionID: "offer",
		JobID:     uuid.New(),
		LockedAt:  time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.Create(stale).Error)

	newJob := uuid.New()
	require.NoError(t, repo.Claim(ctx, funnelID, "offer", newJob, 10*time.Minute))

	var lock types.SectionLock
	require.NoError(t, db.Where("funnel_id = ? AND section_id = ?", funnelID, "offer").First(&lock).Error)
	require.Equal(t, newJob, lock.JobID)
}

func TestGenerationJobProgressMonotonic(t *testing.T) {
	db := openTestDB(t)
	repo := NewGenerationJobRepo(db, logger.NewNop())
	ctx := context.Background()

	job := &types.GenerationJob{
		ID:       uuid.New(),
		FunnelID: uuid.New(),
		UserID:   uuid.New(),
		Status:   types.JobStatusQueued,
	}
	_, err := repo.Create(ctx, nil, []*types.GenerationJob{job})
	require.NoError(t, err)

	require.NoError(t, repo.SetProgress(ctx, nil, job.ID, 40, "offer"))
	require.NoError(t, repo.SetProgress(ctx, nil, job.ID, 20, "message"))

	got, err := repo.GetByID(ctx, nil, job.ID)
	require.NoError(t, err)
	require.Equal(t, 40, got.Progress, "progress never moves backwards")
	require.Equal(t, "message", got.CurrentSection)

	require.NoError(t, repo.SetProgress(ctx, nil, job.ID, 95, "webinar"))
	got, err = repo.GetByID(ctx, nil, job.ID)
	require.NoError(t, err)
	require.Equal(t, 95, got.Progress)
}

func TestGetLatestByFunnelID(t *testing.T) {
	db := openTestDB(t)
	repo := NewGenerationJobRepo(db, logger.NewNop())
	ctx := context.Background()
	funnelID := uuid.New()

	older := &types.GenerationJob{ID: uuid.New(), FunnelID: funnelID, UserID: uuid.New(), Status: types.JobStatusCompleted, CreatedAt: time.Now().Add(-time.Minute)}
	newer := &types.GenerationJob{ID: uuid.New(), FunnelID: funnelID, UserID: older.UserID, Status: types.JobStatusQueued, CreatedAt: time.Now()}
	_, err := repo.Create(ctx, nil, []*types.GenerationJob{older, newer})
	require.NoError(t, err)

	got, err := repo.GetLatestByFunnelID(ctx, nil, funnelID)
	require.NoError(t, err)
	require.Equal(t, newer.ID, got.ID)
}
