package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"exercisehub/internal/overrides"
	"exercisehub/pkg/database"
	"exercisehub/pkg/utils"
)

// openKV connects the configured override backend. The returned func
// releases it.
func openKV(ctx context.Context, cfg utils.StoreConfig, logger *zap.Logger) (overrides.KV, func(), error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		dbCfg := database.Config{Path: cfg.SQLitePath}
		db, err := database.Open(dbCfg)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("db migrate failed: %w", err)
		}
		logger.Info("override store", zap.String("driver", "sqlite"), zap.String("path", dbCfg.Path))
		return overrides.NewSQLiteKV(db, cfg.Timeout), func() { _ = db.Close() }, nil

	case "memory":
		logger.Warn("override store is in-memory; admin edits are lost on restart")
		return overrides.NewMemoryKV(), func() {}, nil

	default:
		conn, err := overrides.Connect(cfg.NATSURL, cfg.NATSEmbedded, cfg.NATSStoreDir)
		if err != nil {
			return nil, nil, err
		}
		js, err := jetstream.New(conn.NC)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("create JetStream context: %w", err)
		}
		kv := overrides.NewJetStreamKV(js, cfg.Bucket, cfg.Timeout)
		if err := kv.Open(ctx); err != nil {
			// reads fall back to base data until the server is reachable
			logger.Warn("override store unavailable at startup", zap.String("url", cfg.NATSURL), zap.Error(err))
		}
		logger.Info("override store",
			zap.String("driver", "nats"),
			zap.String("url", conn.NC.ConnectedUrl()),
			zap.Bool("embedded", cfg.NATSURL == ""),
			zap.String("bucket", cfg.Bucket),
		)
		return kv, conn.Close, nil
	}
}
