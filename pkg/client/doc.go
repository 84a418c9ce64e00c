/*
Package client wraps the discovery gRPC client for CLI usage.

The Client exposes the five protocol operations over a plaintext connection:
Hello, AffiliateUpdate, AffiliateDelete, List, and Watch. It performs no
validation of its own; the server enforces all limits.
*/
package client
