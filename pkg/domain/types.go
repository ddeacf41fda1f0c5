package domain

import "time"

type SubscriptionStatus string

const (
	SubscriptionFree    SubscriptionStatus = "free"
	SubscriptionPremium SubscriptionStatus = "premium"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentCanceled  PaymentStatus = "canceled"
)

// User is a bot user keyed by the externally assigned chat identity.
type User struct {
	ID                 int64              `json:"id"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	MessagesCount      int                `json:"messagesCount"`
	MessageLimit       *int               `json:"messageLimit,omitempty"`
	LastActivity       time.Time          `json:"lastActivity"`
	SubscriptionExpiry *time.Time         `json:"subscriptionExpiry,omitempty"`
}

// ChatEntry is one user message and its generated response. Response is
// empty while generation is still pending.
type ChatEntry struct {
	UserID    int64     `json:"userId"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// Document is an ingested knowledge-base file.
type Document struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	Title      string    `json:"title"`
	UploadDate time.Time `json:"uploadDate"`
	FilePath   string    `json:"filePath"`
	NumPages   int       `json:"numPages"`
	AdminID    int64     `json:"adminId"`
}

// Page is one logical unit of extracted document text.
type Page struct {
	DocID   int64  `json:"docId"`
	PageNum int    `json:"pageNum"`
	Content string `json:"content"`
}

// Payment records one gateway payment attempt. Rows are append-only; the
// latest row per user is the pending payment to verify.
type Payment struct {
	ID               int64             `json:"id"`
	UserID           int64             `json:"userId"`
	PaymentID        string            `json:"paymentId"`
	SubscriptionType string            `json:"subscriptionType"`
	Amount           float64           `json:"amount"`
	Status           PaymentStatus     `json:"status"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// SearchResult is one knowledge-base hit, identical in shape for literal
// and vector search.
type SearchResult struct {
	DocID   int64   `json:"docId"`
	Title   string  `json:"title"`
	PageNum int     `json:"pageNum"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}
