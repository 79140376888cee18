// Package ingest implements the bulk transaction import pipeline.
//
// This package is the heart of the importer, containing all domain logic
// independent of any transport layer. The flow for a full import is:
//
//	bytes -> RowReader -> MapRow (dates, amounts) -> Fingerprint
//	      -> Resolver (dedup) -> Serializer (per-owner order) -> Committer
//	      -> session report + audit write
//
// A dry run stops after the Resolver and performs no mutation; a preview
// stops after the RowReader.
//
// # Ordering
//
// All import-driven writes for one owner are funneled through a single
// FIFO chain in the [Serializer], so two concurrent imports by the same
// owner never interleave their commits. Different owners proceed fully
// in parallel. The commit-order number recorded in the audit session is
// assigned when the commit task actually starts, not when it is
// enqueued, and is strictly increasing per owner.
//
// # Duplicates
//
// A transaction's identity for dedup is (owner, fingerprint), where the
// fingerprint is a deterministic function of the five canonical fields.
// At most one active transaction may exist per identity; a soft-deleted
// transaction sharing a fingerprint is the same logical slot and is
// restored in place rather than duplicated. Within one file, the first
// occurrence of a fingerprint wins and later occurrences count as
// duplicates.
//
// # Error Handling
//
// Row-level problems (bad date, bad amount) skip the row and continue.
// Uniqueness conflicts at commit time are absorbed into duplicate
// accounting. Any other storage error aborts the import. Technical
// errors are mapped to coded user-facing messages via [MapError].
package ingest
