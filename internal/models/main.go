// Package models defines the core data structures for users, sessions,
// forum threads, and purchases.
package models

import "encoding/json"

// UserRecord represents one registered user. Each user owns an isolated
// state partition identified by the (lowercase alphanumeric) username.
type UserRecord struct {
	// Email is the address supplied at registration; login accepts it
	// in place of the username.
	Email string `json:"email"`
	// Username is the unique login name, immutable once set.
	Username string `json:"username"`
	// PasswordHash is the hex-encoded SHA-256 digest of the password.
	// The clear password is never stored or echoed back.
	PasswordHash string `json:"password"`
	// CreatedAt is the registration time in RFC 3339 form.
	CreatedAt string `json:"createdAt"`
}

// Session is one active login: an opaque token bound to a username with a
// fixed expiry. One copy lives in the owning user's state and a second copy
// is replicated into the forum session directory for fast validation.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	// ExpiresAt is an RFC 3339 timestamp; sessions are checked lazily
	// against it and never proactively purged.
	ExpiresAt string `json:"expiresAt"`
}

// DirectoryEntry is the session directory's per-username value. The owner is
// the map key, so only token and expiry are kept.
type DirectoryEntry struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

// Thread is a top-level forum post. The newest thread sits at index 0 of
// the stored collection.
type Thread struct {
	// ID is the creation time in Unix milliseconds, as a decimal string.
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	Content  string `json:"content"`
	Username string `json:"username"`
	// Timestamp is the creation time in RFC 3339 form.
	Timestamp string `json:"timestamp"`
	// ImageURL is an inlined data URL (data:<mime>;base64,<payload>),
	// or empty when the thread has no image.
	ImageURL string  `json:"imageUrl,omitempty"`
	Replies  []Reply `json:"replies"`
}

// Reply is a child post attached to exactly one thread, appended in
// insertion order.
type Reply struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// Purchase records one captured payment for a user.
type Purchase struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	OrderID     string `json:"orderId"`
	ProductID   string `json:"productId"`
	Size        string `json:"size"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Timestamp   string `json:"timestamp"`
	UserAgent   string `json:"userAgent"`
	// ProviderData is the raw capture payload from the payment provider,
	// stored as-is for later reconciliation.
	ProviderData json.RawMessage `json:"paypalData,omitempty"`
}
