// Package cache provides the failure-tolerant cache layer summaries are stored in.
//
// # Overview
//
// The package exports a small set of building blocks:
//
//   - Store: the byte-level key/value backend (in-process tiers or redis)
//   - Layer: typed access to a Store with per-operation timeouts
//   - Codec: the entry encoding (JSON or MessagePack)
//   - KeySerializer: builds stable cache keys
//
// # Basic Usage
//
//	layer, err := cache.New(cache.DefaultConfig(), cache.StoreOptions{})
//	if err != nil {
//		return err
//	}
//
//	keys := cache.NewDefaultKeySerializer()
//	key := cache.UserSummaryKey(keys, userID)
//
//	if err := cache.Save(ctx, layer, key, summary, 3*time.Hour); err != nil {
//		log.Warn().Err(err).Msg("cache write failed")
//	}
//
//	res := cache.Load[debt.UserDebtSummary](ctx, layer, key)
//	switch res.Outcome {
//	case cache.Hit:
//		return res.Value, nil
//	case cache.Failed:
//		log.Warn().Err(res.Err).Msg("cache read failed")
//	}
//
// # Failure Semantics
//
// Cache errors never reach readers. Load folds backend errors, timeouts,
// undecodable payloads and schema mismatches into a Failed outcome, which
// callers treat like a miss. Save and Evict return a *SoftError that callers
// log and drop.
//
// Every entry is wrapped in an envelope stamped with SchemaVersion. An entry
// written by a build with a different version is reported as Failed with
// ErrIncompatibleEntry rather than decoded into the wrong shape.
//
// # Keys
//
// The default serializer produces:
//
//	summary:user:<uuid>
//	summary:system
//
// Use NewKeySerializer to change the namespace when several deployments share
// one redis database.
package cache
