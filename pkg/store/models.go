package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. Table and column names match the bot's
// historical schema so an existing database file keeps working.

type UserModel struct {
	UserID             int64      `gorm:"column:user_id;primaryKey"`
	SubscriptionStatus string     `gorm:"column:subscription_status;default:free"`
	MessagesCount      int        `gorm:"column:messages_count;default:0"`
	MessageLimit       *int       `gorm:"column:message_limit"`
	LastActivity       time.Time  `gorm:"column:last_activity"`
	SubscriptionExpiry *time.Time `gorm:"column:subscription_expiry"`
}

func (UserModel) TableName() string { return "users" }

type ChatHistoryModel struct {
	UserID    int64     `gorm:"column:user_id;primaryKey"`
	Timestamp time.Time `gorm:"column:timestamp;primaryKey"`
	Message   string    `gorm:"column:message"`
	Response  *string   `gorm:"column:response"`
}

func (ChatHistoryModel) TableName() string { return "chat_history" }

type DocumentModel struct {
	DocID      int64     `gorm:"column:doc_id;primaryKey;autoIncrement"`
	Filename   string    `gorm:"column:filename;uniqueIndex"`
	Title      string    `gorm:"column:title"`
	UploadDate time.Time `gorm:"column:upload_date"`
	FilePath   string    `gorm:"column:file_path"`
	NumPages   int       `gorm:"column:num_pages"`
	AdminID    int64     `gorm:"column:admin_id"`
}

func (DocumentModel) TableName() string { return "knowledge_base_docs" }

type PageModel struct {
	ContentID int64  `gorm:"column:content_id;primaryKey;autoIncrement"`
	DocID     int64  `gorm:"column:doc_id;index"`
	PageNum   int    `gorm:"column:page_num"`
	Content   string `gorm:"column:content;type:text"`
}

func (PageModel) TableName() string { return "knowledge_base_content" }

type PaymentModel struct {
	ID               int64          `gorm:"column:id;primaryKey;autoIncrement"`
	UserID           int64          `gorm:"column:user_id;index"`
	PaymentID        string         `gorm:"column:payment_id"`
	SubscriptionType string         `gorm:"column:subscription_type"`
	Amount           float64        `gorm:"column:amount"`
	Status           string         `gorm:"column:status"`
	Metadata         datatypes.JSON `gorm:"column:metadata"`
	CreatedAt        time.Time      `gorm:"column:created_at"`
}

func (PaymentModel) TableName() string { return "payments" }
