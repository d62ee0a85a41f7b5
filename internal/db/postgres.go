package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/types"
	"github.com/yungbote/funnelforge-backend/internal/utils"
)

type PostgresService struct {
	DB  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	dsn := utils.GetEnv("DATABASE_URL", "", log)
	if dsn == "" {
		host := utils.GetEnv("DB_HOST", "localhost", log)
		port := utils.GetEnv("DB_PORT", "5432", log)
		user := utils.GetEnv("DB_USER", "postgres", log)
		pass := utils.GetEnv("DB_PASSWORD", "postgres", log)
		name := utils.GetEnv("DB_NAME", "funnelforge", log)
		sslmode := utils.GetEnv("DB_SSLMODE", "disable", log)
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, pass, name, sslmode)
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	svc := &PostgresService{DB: gdb, log: log.With("component", "PostgresService")}
	if err := svc.migrate(); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *PostgresService) migrate() error {
	if err := s.DB.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		s.log.Warn("could not ensure uuid-ossp extension", "error", err.Error())
	}
	if err := s.DB.AutoMigrate(
		&types.User{},
		&types.Funnel{},
		&types.SectionDocument{},
		&types.SectionLock{},
		&types.GenerationJob{},
		&types.AICallLog{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	s.log.Info("database migrated")
	return nil
}

func (s *PostgresService) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
