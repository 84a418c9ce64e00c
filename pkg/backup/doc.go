/*
Package backup persists the registry to disk and restores it on startup.

The Engine writes a single JSON artifact, discovery_service_backup.json, in
the configured backup directory: an array of cluster objects with their
affiliate tables, byte payloads encoded as arrays of numbers, expiration
instants preserved, and a trailing newline. Watch subscriptions are runtime
state and are never persisted.

Durability is best-effort. On startup a present file must decode or the
service refuses to start; afterwards the loop exports on a fixed interval
(default 600s) and a single write failure stops the loop permanently while
the service keeps serving without backups.
*/
package backup
