/*
Package gc runs the periodic garbage collection loop.

The Collector fires on a fixed interval (default 60s, first tick one
interval after start) and delegates each sweep to the registry: expired
affiliates are removed and broadcast as a deleted batch, then clusters left
empty are dropped. The loop never terminates on its own; a removed cluster
may be recreated by any later write or watch under the same ID.
*/
package gc
