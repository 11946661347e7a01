// Package redisstore persists record store snapshots in Redis.
//
// Every collection lives under one string key (KeyPrefix + collection name)
// written with SET, so a snapshot is replaced in a single command.
//
//	client, err := redisstore.Connect(ctx, cfg)
//	if err != nil { ... }
//	backend := redisstore.New(client, cfg.KeyPrefix)
//
// Healthcheck returns a probe suitable for HTTP readiness endpoints.
package redisstore
