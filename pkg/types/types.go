package types

import (
	"errors"
	"time"
)

// Protocol limits enforced on every request. Identifier and payload caps
// bound memory per record; the TTL cap bounds how long a record can outlive
// its publisher.
const (
	MaxIdentifierLength = 256
	MaxPayloadLength    = 512 * 1024
	MaxTTL              = 2 * time.Hour
)

var (
	// ErrTTLMissing indicates an update request without a TTL.
	ErrTTLMissing = errors.New("invalid TTL")

	// ErrTTLOutOfRange indicates a TTL that is not strictly positive or
	// exceeds MaxTTL.
	ErrTTLOutOfRange = errors.New("maximum TTL exceeded")

	// ErrClusterNotFound indicates an operation against an unknown cluster.
	ErrClusterNotFound = errors.New("cluster not found")
)

// Affiliate is one member of a cluster. Data and Endpoints are opaque to the
// server; clients encrypt them end-to-end. Expiration is the absolute
// wall-clock instant after which the record is eligible for garbage
// collection.
type Affiliate struct {
	ID         string
	Data       []byte
	Endpoints  [][]byte
	Expiration time.Time
}

// NewAffiliate builds an affiliate record from request fields, copying the
// byte payloads so the record never aliases request buffers.
func NewAffiliate(id string, data []byte, endpoints [][]byte, expiration time.Time) *Affiliate {
	a := &Affiliate{
		ID:         id,
		Data:       make([]byte, len(data)),
		Endpoints:  make([][]byte, 0, len(endpoints)),
		Expiration: expiration,
	}
	copy(a.Data, data)

	for _, ep := range endpoints {
		cp := make([]byte, len(ep))
		copy(cp, ep)
		a.Endpoints = append(a.Endpoints, cp)
	}

	return a
}

// Expired reports whether the record's expiration has passed at the given
// instant.
func (a *Affiliate) Expired(now time.Time) bool {
	return !a.Expiration.After(now)
}

// ClusterSnapshot is a serializable view of one cluster: its ID and the
// affiliate table keyed by affiliate ID. Watch subscriptions are runtime
// state and are not part of the view.
type ClusterSnapshot struct {
	ID         string
	Affiliates map[string]*Affiliate
}
