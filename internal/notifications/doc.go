// Package notifications delivers run outcomes via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set, so the
// sync run never branches on whether notifications are enabled.
//
// Extend this package if you need alternative transports; callers depend only
// on the simple Service interface.
package notifications
