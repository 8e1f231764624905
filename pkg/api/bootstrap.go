package api

import (
	"harforge/internal/config"
	"harforge/internal/logger"
	"harforge/internal/rulestore"
	"harforge/internal/storage/db"
)

// NewFromConfig 按配置组装完整服务：日志、数据库、规则存储与服务层
func NewFromConfig(cfg *config.Config) (Service, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	log := logger.NewZeroLogger(cfg)

	gdb, err := db.New(db.Options{
		Name:   cfg.Sqlite.Db,
		Prefix: cfg.Sqlite.Prefix,
		Logger: db.NewLogger(log),
	})
	if err != nil {
		log.Err(err, "初始化数据库失败")
		return nil, err
	}

	store := rulestore.New(gdb)
	if err := store.Migrate(); err != nil {
		log.Err(err, "数据库迁移失败")
		return nil, err
	}

	return NewService(store, Options{Concurrency: cfg.Parse.Concurrency}, log), nil
}
