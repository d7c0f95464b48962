package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ivanov-nikolay/notes_storage/internal/config"
	"github.com/ivanov-nikolay/notes_storage/internal/logging"
	"github.com/ivanov-nikolay/notes_storage/internal/storage"
)

// backend хранилища метаданных, пользователей и сессий
type backend struct {
	records  storage.RecordStore
	users    storage.UserStore
	sessions storage.SessionStore
	close    func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.Storage.Backend == "memory" {
		logging.Warn("using in-memory metadata store, data is lost on restart")
		mem := storage.NewMemoryStore()
		return &backend{records: mem, users: mem, sessions: mem, close: func() {}}, nil
	}

	mongoStore, err := storage.NewMongoStore(ctx, cfg.Mongo)
	if err != nil {
		return nil, err
	}

	sessions, err := storage.NewRedisSessions(ctx, cfg.Redis)
	if err != nil {
		closeMongo(mongoStore)
		return nil, err
	}

	return &backend{
		records:  mongoStore,
		users:    mongoStore,
		sessions: sessions,
		close: func() {
			if err := sessions.Close(); err != nil {
				logging.Warn("redis close failed", zap.Error(err))
			}
			closeMongo(mongoStore)
		},
	}, nil
}

func closeMongo(s *storage.MongoStore) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		logging.Warn("mongo disconnect failed", zap.Error(err))
	}
}
