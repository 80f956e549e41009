// Package app wires configuration, storage, services and the HTTP router together.
package app

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"imgpub/internal/config"
	"imgpub/internal/handlers"
	"imgpub/internal/publish"
	"imgpub/internal/services"
	"imgpub/internal/storage"
	"imgpub/internal/user"
)

const migrateTimeout = 30 * time.Second

// SelectStorage - selects the storage for links and gateway settings: database, file, or memory.
// A backend that cannot be prepared is logged and the next one is tried.
func SelectStorage(c *config.Config, log *zap.SugaredLogger) storage.Store {
	if c.DBConnection != "" {
		log.Infow("try using DB")
		if s, err := openDB(c, log); err != nil {
			log.Errorw("database storage unavailable", "error", err)
		} else {
			return s
		}
	}

	if c.LinkStorageFile != "" {
		log.Infow("try using file", "path", c.LinkStorageFile)
		s, err := storage.NewStorageFile(c, log)
		if err != nil {
			log.Errorw("error using file", "error", err)
		} else if err := storage.RestoreLinks(s); err != nil {
			log.Errorw("restore error", "error", err)
			_ = s.Close()
		} else {
			storage.AutoSave(s)
			return s
		}
	}

	log.Infow("using memory")
	return storage.NewStorageMemory()
}

func openDB(c *config.Config, log *zap.SugaredLogger) (*storage.StorageDB, error) {
	s, err := storage.NewStorageDB(c.DBConnection, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if err := storage.UpDBMigrations(ctx, s.DBConn, log); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// NewServices builds the composite service on top of the selected store.
func NewServices(c *config.Config, s storage.Store, log *zap.SugaredLogger) *services.CompositeService {
	links := services.NewLinkService(c, s, log)
	migration := services.NewMigrationService(c, s, log)
	uploads := services.NewUploadService(c, s, publish.NewClient(c, log), links, migration, log)
	return services.NewCompositeService(links, migration, uploads, user.NewOwnerService(c), s)
}

// NewHandler returns the fully wired HTTP handler.
func NewHandler(c *config.Config, s storage.Store, log *zap.SugaredLogger) http.Handler {
	ctrl := handlers.NewController(NewServices(c, s, log), log, c)
	return NewRouter(c, ctrl)
}

// CreateServer creates and configures an HTTP server.
func CreateServer(c *config.Config, handler http.Handler, logger *zap.SugaredLogger) *http.Server {
	logger.Infof("imgpub at %s", c.Addr)

	return &http.Server{
		Addr:              c.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 20 * time.Second,
	}
}
