package store

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"marketbot/pkg/domain"
)

// CreatePayment appends a payment row. The payments table is append-only;
// the latest row per user is the pending payment to verify.
func (s *GormStore) CreatePayment(p domain.Payment) error {
	meta, _ := json.Marshal(p.Metadata)
	model := PaymentModel{
		UserID:           p.UserID,
		PaymentID:        p.PaymentID,
		SubscriptionType: p.SubscriptionType,
		Amount:           p.Amount,
		Status:           string(p.Status),
		Metadata:         meta,
		CreatedAt:        time.Now().UTC(),
	}
	return s.db.Create(&model).Error
}

// LatestPendingPayment returns the user's most recent pending payment.
func (s *GormStore) LatestPendingPayment(userID int64) (domain.Payment, bool, error) {
	var model PaymentModel
	err := s.db.Where("user_id = ? AND status = ?", userID, string(domain.PaymentPending)).
		Order("created_at DESC").First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Payment{}, false, nil
		}
		return domain.Payment{}, false, err
	}
	return paymentFromModel(model), true, nil
}

// SetPaymentStatus updates the status of a payment by its gateway reference.
func (s *GormStore) SetPaymentStatus(paymentID string, status domain.PaymentStatus) error {
	return s.db.Model(&PaymentModel{}).
		Where("payment_id = ?", paymentID).
		Update("status", string(status)).Error
}

func paymentFromModel(m PaymentModel) domain.Payment {
	var meta map[string]string
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return domain.Payment{
		ID:               m.ID,
		UserID:           m.UserID,
		PaymentID:        m.PaymentID,
		SubscriptionType: m.SubscriptionType,
		Amount:           m.Amount,
		Status:           domain.PaymentStatus(m.Status),
		Metadata:         meta,
		CreatedAt:        m.CreatedAt,
	}
}
