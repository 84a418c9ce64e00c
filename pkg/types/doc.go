/*
Package types defines the core data types shared across the discovery service.

The types package holds the Affiliate value object, the serializable cluster
view used by backups, the protocol limits enforced on every request, and the
error kinds the API layer maps onto gRPC status codes. It has no dependencies
on other service packages so every layer can import it freely.
*/
package types
