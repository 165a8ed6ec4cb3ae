// Package integration provides integration tests for the plugin host
// daemon. These tests exercise the complete host lifecycle over the
// REST API: module installation, manifest scanning, admission
// filtering, notification dispatch, and the persisted component cache.
package integration
