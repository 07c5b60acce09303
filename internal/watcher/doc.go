// Package watcher feeds filesystem change bursts into the sync workflow
// after a debounce window.
package watcher
