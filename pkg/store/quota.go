package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketbot/pkg/domain"
)

// RecordActivity upserts the user's last-activity timestamp without touching
// counters or subscription state.
func (s *GormStore) RecordActivity(userID int64) error {
	now := time.Now().UTC()
	model := UserModel{UserID: userID, LastActivity: now}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"last_activity": now}),
	}).Create(&model).Error
}

// GetMessageCount returns the stored counter. If the user row is absent, the
// count is reconstructed from chat history and backfilled into a new row.
func (s *GormStore) GetMessageCount(userID int64) (int, error) {
	var model UserModel
	err := s.db.First(&model, "user_id = ?", userID).Error
	if err == nil {
		return model.MessagesCount, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, err
	}
	var historyCount int64
	if err := s.db.Model(&ChatHistoryModel{}).Where("user_id = ?", userID).Count(&historyCount).Error; err != nil {
		return 0, err
	}
	if historyCount == 0 {
		return 0, nil
	}
	backfill := UserModel{
		UserID:        userID,
		MessagesCount: int(historyCount),
		LastActivity:  time.Now().UTC(),
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&backfill).Error; err != nil {
		return 0, err
	}
	return int(historyCount), nil
}

// IncrementMessageCount creates the user row with count = 1 if absent,
// otherwise atomically increments. This is how new users first become
// visible to the quota tracker.
func (s *GormStore) IncrementMessageCount(userID int64) error {
	now := time.Now().UTC()
	model := UserModel{UserID: userID, MessagesCount: 1, LastActivity: now}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"messages_count": gorm.Expr("messages_count + 1"),
			"last_activity":  now,
		}),
	}).Create(&model).Error
}

// IncrementAndCheck applies the increment-then-check quota policy: the
// counter includes the in-flight message when compared to the limit, so the
// message that reaches the limit is still allowed and only the next one is
// rejected.
func (s *GormStore) IncrementAndCheck(userID int64) (count, limit int, allowed bool, err error) {
	if err = s.IncrementMessageCount(userID); err != nil {
		return 0, 0, false, fmt.Errorf("increment count: %w", err)
	}
	if count, err = s.GetMessageCount(userID); err != nil {
		return 0, 0, false, fmt.Errorf("read count: %w", err)
	}
	if limit, err = s.GetMessageLimit(userID); err != nil {
		return 0, 0, false, fmt.Errorf("read limit: %w", err)
	}
	return count, limit, count <= limit, nil
}

// ResetMessageCount zeroes the counter, typically paired with granting a
// paid tier.
func (s *GormStore) ResetMessageCount(userID int64) error {
	return s.db.Model(&UserModel{}).Where("user_id = ?", userID).
		Update("messages_count", 0).Error
}

// GetSubscriptionStatus resolves subscription expiry first, then returns
// the possibly downgraded status. Unknown users are free.
func (s *GormStore) GetSubscriptionStatus(userID int64) (domain.SubscriptionStatus, error) {
	if err := s.CheckSubscriptionExpiry(userID); err != nil {
		return domain.SubscriptionFree, err
	}
	var model UserModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.SubscriptionFree, nil
		}
		return domain.SubscriptionFree, err
	}
	if model.SubscriptionStatus == "" {
		return domain.SubscriptionFree, nil
	}
	return domain.SubscriptionStatus(model.SubscriptionStatus), nil
}

// CheckSubscriptionExpiry downgrades an expired premium subscription to free
// and clears any per-user limit override. Read-triggered, not a background
// sweep; a second consecutive call is a no-op.
func (s *GormStore) CheckSubscriptionExpiry(userID int64) error {
	var model UserModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	if domain.SubscriptionStatus(model.SubscriptionStatus) != domain.SubscriptionPremium {
		return nil
	}
	if model.SubscriptionExpiry == nil || time.Now().Before(*model.SubscriptionExpiry) {
		return nil
	}
	return s.db.Model(&UserModel{}).Where("user_id = ?", userID).
		Updates(map[string]any{
			"subscription_status": string(domain.SubscriptionFree),
			"message_limit":       nil,
		}).Error
}

// GetMessageLimit resolves the quota: per-user override first, then the tier
// table for the current subscription, then the fallback limit.
func (s *GormStore) GetMessageLimit(userID int64) (int, error) {
	var model UserModel
	err := s.db.First(&model, "user_id = ?", userID).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return 0, err
	}
	if err == nil && model.MessageLimit != nil && *model.MessageLimit > 0 {
		return *model.MessageLimit, nil
	}
	status, err := s.GetSubscriptionStatus(userID)
	if err != nil {
		return 0, err
	}
	if limit, ok := s.tierLimits[status]; ok {
		return limit, nil
	}
	return s.fallbackLimit, nil
}

// SetMessageLimit sets or clears (nil) the per-user override.
func (s *GormStore) SetMessageLimit(userID int64, limit *int) error {
	now := time.Now().UTC()
	model := UserModel{UserID: userID, MessageLimit: limit, LastActivity: now}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"message_limit": limit}),
	}).Create(&model).Error
}

// UpdateSubscription unconditionally overwrites the tier and expiry. Call
// sites pair a premium grant with ResetMessageCount.
func (s *GormStore) UpdateSubscription(userID int64, status domain.SubscriptionStatus, expiry *time.Time) error {
	now := time.Now().UTC()
	model := UserModel{
		UserID:             userID,
		SubscriptionStatus: string(status),
		SubscriptionExpiry: expiry,
		LastActivity:       now,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"subscription_status": string(status),
			"subscription_expiry": expiry,
		}),
	}).Create(&model).Error
}

// ListUserIDs returns every known user id, for admin broadcast.
func (s *GormStore) ListUserIDs() ([]int64, error) {
	var ids []int64
	if err := s.db.Model(&UserModel{}).Order("user_id ASC").Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// UserCount returns the number of known users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}
