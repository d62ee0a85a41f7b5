package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
	"github.com/yungbote/funnelforge-backend/internal/funnel/schema"
	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/repos"
	"github.com/yungbote/funnelforge-backend/internal/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite allows a single writer; concurrent section workers queue on the pool.
	sqlDB.SetMaxOpenConns(1)
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

func createTestFunnel(t *testing.T, db *gorm.DB, answers map[string]string) *types.Funnel {
	t.Helper()
	raw, err := json.Marshal(answers)
	require.NoError(t, err)
	funnel := &types.Funnel{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		Name:    "Test Funnel",
		Answers: datatypes.JSON(raw),
	}
	require.NoError(t, db.Create(funnel).Error)
	return funnel
}

// approveSection inserts an approved current version with the given content.
func approveSection(t *testing.T, db *gorm.DB, funnelID uuid.UUID, sectionID graph.SectionID, content map[string]any) {
	t.Helper()
	repo := repos.NewSectionDocumentRepo(db, logger.NewNop())
	raw, err := json.Marshal(content)
	require.NoError(t, err)
	_, err = repo.CreateNewVersion(context.Background(), funnelID, string(sectionID), datatypes.JSON(raw), "", nil)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateCurrentStatus(context.Background(), nil, funnelID, string(sectionID), types.SectionStatusApproved))
}

// fakeAI answers every Generate call through a swappable handler and records
// the prompts it saw. Chunk workers call it concurrently.
type fakeAI struct {
	mu      sync.Mutex
	handler func(system, user string, opts AIOptions) (string, error)
	prompts []string
}

func (f *fakeAI) Generate(_ context.Context, system, user string, opts AIOptions) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, user)
	f.mu.Unlock()
	return f.handler(system, user, opts)
}

func (f *fakeAI) seenPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}

// universalResponse renders one JSON document carrying a value for every
// declared field of every section. Normalization strips what a given section
// does not declare.
func universalResponse(t *testing.T) string {
	t.Helper()
	doc := map[string]any{}
	for _, id := range graph.AllSections() {
		for _, f := range schema.Fields(id) {
			if _, ok := schema.Lookup(doc, f); ok {
				continue
			}
			schema.Set(doc, f, "generated copy for "+string(f))
		}
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(raw)
}
