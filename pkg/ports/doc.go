/*
Package ports defines the driven ports (interfaces) for the mosaic engine.

These interfaces decouple the propagation core from external implementations,
allowing dashboards to be persisted, locked and rendered by various backends.

# Key Interfaces

  - SnapshotStore: persists and loads per-session snapshots (memory, Redis, bbolt).
  - DistributedLocker: serializes event dispatch for a session across instances.
  - Renderer: a passive consumer of published snapshots and diffs.
*/
package ports
