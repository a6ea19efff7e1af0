// Package store implements the in-memory telemetry store for the fleet
// monitor container.
//
// The store keeps a registry of auto-discovered devices plus a bounded
// per-device, per-key time series. Devices are created on first contact and
// never deleted; each series keeps the most recent samples up to a fixed
// capacity and evicts oldest-first. All reads hand out copies so callers
// never observe a partial write.
package store
