/*
Package config resolves the server configuration.

Values are layered with flag > environment > config file > default
precedence. The environment variables mirror the flag names in upper-case
snake form (PORT, GC_INTERVAL, BACKUP_PATH, BACKUP_INTERVAL, METRICS_ADDR);
the optional config file is YAML with the same keys in lower-case snake
form. The CLI owns the flag layer and applies it after the other layers.
*/
package config
