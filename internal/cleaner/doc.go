// Package cleaner implements the log cleaner's policy engine: cost-benefit
// segment selection, in-memory compaction, on-disk cleaning, write-cost
// balancing, and the parallel worker loop that drives them. It composes
// internal/segmentmgr (segment lifecycle), internal/entryhandler (per-entry
// liveness), and internal/replica (survivor durability); it never mutates
// segment state directly.
package cleaner
