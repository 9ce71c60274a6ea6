// Package harness boots the coordination service, the broker cluster and
// the worker pool in dependency order and tears them down in reverse.
package harness
