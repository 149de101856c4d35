package credstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/telepredict/internal/config"
	"github.com/spec-kit/telepredict/internal/persistence"
)

// Open builds the store selected by cfg. rdb is only used by the redis backend.
// The memory backend gives a fresh origin, which only outlives the process
// when the caller keeps the origin around.
func Open(cfg config.StoreConfig, rdb *persistence.Redis, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return NewMemoryOrigin().Open(), nil
	case config.StoreFile:
		return NewFileStore(cfg.Path, logger)
	case config.StoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis backend needs a redis client")
		}
		return NewRedisStore(rdb, cfg.Namespace, logger), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
