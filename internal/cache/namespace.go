// Package cache is a namespaced key-value cache with per-namespace expiry.
//
// Entries are stored as JSON envelopes carrying the time they were
// captured. Expired entries are removed when read; there is no background
// sweep. When the underlying medium runs out of room the oldest quarter of
// the namespace is evicted and the write is retried once.
package cache

import (
	"fmt"
	"strings"
	"time"
)

// Namespace partitions the cache by entity class.
type Namespace string

const (
	NamespaceCards  Namespace = "cards"  // Card metadata
	NamespaceImages Namespace = "images" // Card images
	NamespaceBulk   Namespace = "bulk"   // Bulk datasets, gzip compressed
	NamespaceSets   Namespace = "sets"   // Set information
)

// Namespaces lists every namespace.
var Namespaces = []Namespace{NamespaceCards, NamespaceImages, NamespaceBulk, NamespaceSets}

// DefaultTTL returns how long entries in the namespace stay fresh.
func (ns Namespace) DefaultTTL() time.Duration {
	switch ns {
	case NamespaceCards:
		return 24 * time.Hour
	case NamespaceImages:
		return 7 * 24 * time.Hour
	case NamespaceBulk:
		return 24 * time.Hour
	case NamespaceSets:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// ParseNamespace validates a namespace name.
func ParseNamespace(s string) (Namespace, error) {
	ns := Namespace(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Namespaces {
		if ns == known {
			return ns, nil
		}
	}
	return "", fmt.Errorf("unknown cache namespace: %q", s)
}
