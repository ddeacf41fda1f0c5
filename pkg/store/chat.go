package store

import (
	"time"

	"gorm.io/gorm"

	"marketbot/pkg/domain"
)

// RecordPendingMessage stores a user message awaiting generation. If a
// pending row already exists for the user it is reused, keeping at most one
// pending entry per user.
func (s *GormStore) RecordPendingMessage(userID int64, message string) error {
	now := time.Now().UTC()
	var pending ChatHistoryModel
	err := s.db.Where("user_id = ? AND response IS NULL", userID).
		Order("timestamp DESC").First(&pending).Error
	if err == nil {
		return s.db.Model(&ChatHistoryModel{}).
			Where("user_id = ? AND timestamp = ?", pending.UserID, pending.Timestamp).
			Updates(map[string]any{"message": message, "timestamp": now}).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	entry := ChatHistoryModel{UserID: userID, Timestamp: now, Message: message}
	return s.db.Create(&entry).Error
}

// SaveChatTurn records a completed message/response pair. The most recent
// pending row for the user is resolved in place when one exists.
func (s *GormStore) SaveChatTurn(userID int64, message, response string) error {
	var pending ChatHistoryModel
	err := s.db.Where("user_id = ? AND response IS NULL", userID).
		Order("timestamp DESC").First(&pending).Error
	if err == nil {
		return s.db.Model(&ChatHistoryModel{}).
			Where("user_id = ? AND timestamp = ?", pending.UserID, pending.Timestamp).
			Updates(map[string]any{"message": message, "response": response}).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	entry := ChatHistoryModel{
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Message:   message,
		Response:  &response,
	}
	return s.db.Create(&entry).Error
}

// GetChatHistory returns the user's most recent turns, newest first.
// Pending entries come back with an empty response.
func (s *GormStore) GetChatHistory(userID int64, limit int) ([]domain.ChatEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var models []ChatHistoryModel
	if err := s.db.Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.ChatEntry, 0, len(models))
	for _, m := range models {
		entry := domain.ChatEntry{
			UserID:    m.UserID,
			Message:   m.Message,
			Timestamp: m.Timestamp,
		}
		if m.Response != nil {
			entry.Response = *m.Response
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CleanupInactiveChats deletes chat history and user rows whose last
// activity is older than the cutoff. Irreversible; intended as periodic
// maintenance, not safe against users turning active mid-sweep.
func (s *GormStore) CleanupInactiveChats(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var removed int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(
			"user_id IN (SELECT user_id FROM users WHERE last_activity < ?)", cutoff,
		).Delete(&ChatHistoryModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("last_activity < ?", cutoff).Delete(&UserModel{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}
