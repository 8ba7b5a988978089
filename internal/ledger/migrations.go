package ledger

import (
	"fmt"

	"gorm.io/gorm"
)

// RunMigrations performs auto-migration for all ledger tables.
func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&Transaction{},
		&FoodChoice{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate ledger tables: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_is_admin ON users(is_admin)",
		"CREATE INDEX IF NOT EXISTS idx_users_balance ON users(balance)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(telegram_id, id)",
		"CREATE INDEX IF NOT EXISTS idx_food_choices_day_ns ON food_choices(day, namespace)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
