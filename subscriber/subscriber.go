// Package subscriber defines the read-only view of the downstream
// subscriber registry.
//
// Subscribers are owned and mutated entirely by an external registry; the
// relay engine only reads them. Their IDs are opaque strings assigned by
// that registry, not Hookline TypeIDs.
package subscriber

// Subscriber is a registered downstream HTTP endpoint for a project.
type Subscriber struct {
	// ID is the registry-assigned identifier, unique within a project.
	ID string `json:"id"`

	// ProjectID identifies the project this subscriber belongs to.
	ProjectID string `json:"project_id"`

	// URL is the delivery target. Subscribers with an empty or malformed
	// URL are skipped and never counted as delivery attempts.
	URL string `json:"url"`

	// Options holds per-subscriber delivery adjustments.
	Options DeliveryOptions `json:"options,omitempty"`
}

// DeliveryOptions are per-subscriber delivery adjustments read from the
// registry alongside the subscriber record.
type DeliveryOptions struct {
	// Headers are custom HTTP headers sent with each delivery.
	Headers map[string]string `json:"headers,omitempty"`

	// RateLimit is the maximum deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit,omitempty"`

	// TopKExempt disables the topK default-injection rule for this
	// subscriber even when its URL matches the configured prefix.
	TopKExempt bool `json:"top_k_exempt,omitempty"`
}
