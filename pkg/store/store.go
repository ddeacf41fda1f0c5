package store

import (
	"errors"
	"time"

	"marketbot/pkg/domain"
)

var (
	// ErrDocumentNotFound is returned when a document id or filename does
	// not exist. Deletion of a missing document is reported, not ignored.
	ErrDocumentNotFound = errors.New("document not found")
)

// PageHit is a literal-search match carrying the full page content.
type PageHit struct {
	DocID   int64
	Title   string
	PageNum int
	Content string
}

// Store defines persistence operations for users, chat history, documents,
// and payments.
type Store interface {
	// quota & subscription
	RecordActivity(userID int64) error
	GetMessageCount(userID int64) (int, error)
	IncrementMessageCount(userID int64) error
	IncrementAndCheck(userID int64) (count, limit int, allowed bool, err error)
	ResetMessageCount(userID int64) error
	GetSubscriptionStatus(userID int64) (domain.SubscriptionStatus, error)
	CheckSubscriptionExpiry(userID int64) error
	GetMessageLimit(userID int64) (int, error)
	SetMessageLimit(userID int64, limit *int) error
	UpdateSubscription(userID int64, status domain.SubscriptionStatus, expiry *time.Time) error
	ListUserIDs() ([]int64, error)
	UserCount() (int, error)

	// chat history
	RecordPendingMessage(userID int64, message string) error
	SaveChatTurn(userID int64, message, response string) error
	GetChatHistory(userID int64, limit int) ([]domain.ChatEntry, error)
	CleanupInactiveChats(olderThan time.Duration) (int64, error)

	// documents
	CreateDocumentWithPages(doc domain.Document, pages []domain.Page) (int64, error)
	GetDocument(docID int64) (domain.Document, bool, error)
	GetDocumentByFilename(filename string) (domain.Document, bool, error)
	ListDocuments() ([]domain.Document, error)
	DeleteDocument(docID int64) error
	GetPageContent(docID int64, pageNum int) (string, bool, error)
	ListPages(docID int64) ([]domain.Page, error)
	SearchPages(terms []string, limit int) ([]PageHit, error)

	// payments
	CreatePayment(p domain.Payment) error
	LatestPendingPayment(userID int64) (domain.Payment, bool, error)
	SetPaymentStatus(paymentID string, status domain.PaymentStatus) error
}
