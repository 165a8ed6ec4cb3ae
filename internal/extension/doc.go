// Package extension maintains the component registry a plughost daemon
// serves from: which components the installed modules contribute, where
// their descriptors live, and how executable extension instances are
// created from them.
//
// # Core types
//
//   - Registry: concurrency-safe map of ComponentRecord keyed by
//     component identifier. Registration is idempotent, so the bulk
//     scan and the live module event stream can feed it without
//     coordinating with each other.
//   - Populator: fills the Registry. It subscribes to module lifecycle
//     events first, then either restores a valid persisted cache or
//     bulk-scans the manifests of every installed module. Events that
//     race the scan are absorbed by the idempotent registration sink.
//   - Factory: creates executable extension instances from registered
//     components, resolving the contributing module through the
//     identity cache. Failures surface as *CreateError.
//
// The persisted cache lives behind the CacheStore interface; the file
// implementation is in internal/store.
package extension
