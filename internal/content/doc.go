// Package content manages the lifecycle of loaded content collections.
//
// The core components are:
//   - [Builder]: loads every registry collection from a content root into a [Snapshot]
//   - [Manager]: stores the active snapshot using atomic.Pointer for lock-free reads
//   - [Watcher]: polls a [Source] for changes and hot-swaps rebuilt snapshots into the Manager
//   - [Snapshot]: immutable validated entries with metadata
//
// A snapshot is only swapped in after every entry validated and
// [ValidateSnapshot] passed, so readers never see a partially loaded tree.
package content
