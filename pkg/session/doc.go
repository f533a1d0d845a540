/*
Package session serves one dashboard definition to many concurrent users.

Each session owns its own engine and cell state. The Manager serializes events
per session, persists every published snapshot to a ports.SnapshotStore and,
with a ports.DistributedLocker, coordinates replicas sharing that store.
*/
package session
