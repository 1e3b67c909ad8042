package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jo-hoe/formulastore/internal/backend/database"
)

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	formulas        *FormulaRegistry
	images          *ImageStore
}

// NewCoreService opens the configured storage backend and builds the registry and image store on top.
func NewCoreService(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	databaseService, err := getDatabaseService(ctx, config)
	if err != nil {
		return nil, err
	}
	return NewCoreServiceWithDatabase(config, databaseService), nil
}

// NewCoreServiceWithDatabase uses an already initialized storage backend.
func NewCoreServiceWithDatabase(config *ServiceConfig, databaseService database.DatabaseService) *CoreService {
	return &CoreService{
		config:          config,
		databaseService: databaseService,
		formulas:        NewFormulaRegistry(databaseService),
		images:          NewImageStore(databaseService, config.Preview),
	}
}

func (service *CoreService) Formulas() *FormulaRegistry {
	return service.formulas
}

func (service *CoreService) Images() *ImageStore {
	return service.images
}

// Healthy reports whether the storage backend is reachable.
func (service *CoreService) Healthy(ctx context.Context) bool {
	return service.databaseService.DoesDatabaseExist(ctx)
}

func (service *CoreService) Close() error {
	return service.databaseService.Close()
}

func getDatabaseService(ctx context.Context, config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(ctx, config.Database.Type, config.Database.ConnectionString, database.Options{
		KeyPrefix: config.Database.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}
