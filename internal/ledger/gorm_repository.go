package ledger

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lunchbot-api/internal/common"
)

// gormLedgerRepository implements the LedgerRepository interface using GORM.
type gormLedgerRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormLedgerRepository creates a new GORM-based ledger repository.
func NewGormLedgerRepository(db *gorm.DB, logger *zap.Logger) LedgerRepository {
	return &gormLedgerRepository{
		db:     db,
		logger: logger,
	}
}

// User operations

// CreateUser inserts a new user record.
func (r *gormLedgerRepository) CreateUser(user *User) error {
	r.logger.Debug("Creating user", zap.Int64("telegramID", user.TelegramID))

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := r.db.Create(user).Error; err != nil {
		return WrapRepositoryError(err, "create user")
	}

	r.logger.Info("User created", zap.Int64("telegramID", user.TelegramID))
	return nil
}

// GetUser retrieves a user by telegram ID.
func (r *gormLedgerRepository) GetUser(telegramID int64) (*User, error) {
	var user User
	err := r.db.Where("telegram_id = ?", telegramID).First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFoundError{Resource: "User", ID: fmt.Sprintf("%d", telegramID)}
		}
		return nil, WrapRepositoryError(err, "get user")
	}

	return &user, nil
}

// GetAllUsers retrieves every registered user.
func (r *gormLedgerRepository) GetAllUsers() ([]*User, error) {
	var users []*User
	if err := r.db.Order("created_at").Find(&users).Error; err != nil {
		return nil, WrapRepositoryError(err, "get all users")
	}
	return users, nil
}

// GetAdmins retrieves users with the admin flag set.
func (r *gormLedgerRepository) GetAdmins() ([]*User, error) {
	var admins []*User
	if err := r.db.Where("is_admin = ?", true).Find(&admins).Error; err != nil {
		return nil, WrapRepositoryError(err, "get admins")
	}
	return admins, nil
}

// UpdateUser persists the mutable fields of a user record. Select lists the
// fields explicitly so zero values (balance 0, cleared day lists) are written.
func (r *gormLedgerRepository) UpdateUser(user *User) error {
	r.logger.Debug("Updating user", zap.Int64("telegramID", user.TelegramID))

	user.UpdatedAt = time.Now()
	result := r.db.Model(user).
		Where("telegram_id = ?", user.TelegramID).
		Select("name", "phone", "balance", "daily_price", "attendance",
			"declined_days", "is_admin", "last_balance_notice", "updated_at").
		Updates(user)

	if result.Error != nil {
		return WrapRepositoryError(result.Error, "update user")
	}
	if result.RowsAffected == 0 {
		return common.NotFoundError{Resource: "User", ID: fmt.Sprintf("%d", user.TelegramID)}
	}

	return nil
}

// DeleteUser hard-deletes a user record. Food choice cascade is the
// service's responsibility so it lands in the same transaction.
func (r *gormLedgerRepository) DeleteUser(telegramID int64) error {
	r.logger.Debug("Deleting user", zap.Int64("telegramID", telegramID))

	result := r.db.Delete(&User{}, "telegram_id = ?", telegramID)
	if result.Error != nil {
		return WrapRepositoryError(result.Error, "delete user")
	}
	if result.RowsAffected == 0 {
		return common.NotFoundError{Resource: "User", ID: fmt.Sprintf("%d", telegramID)}
	}

	r.logger.Info("User deleted", zap.Int64("telegramID", telegramID))
	return nil
}

// Transaction operations

// AppendTransaction inserts one audit record. The log is append-only: no
// update or delete path exists on this repository.
func (r *gormLedgerRepository) AppendTransaction(txn *Transaction) error {
	if !txn.Type.IsValid() {
		return common.ValidationError{Field: "type", Message: fmt.Sprintf("unknown transaction type %q", txn.Type)}
	}

	txn.CreatedAt = time.Now()
	if err := r.db.Create(txn).Error; err != nil {
		return WrapRepositoryError(err, "append transaction")
	}

	return nil
}

// GetTransactions retrieves a user's transactions, newest first.
func (r *gormLedgerRepository) GetTransactions(telegramID int64, limit int) ([]*Transaction, error) {
	query := r.db.Where("telegram_id = ?", telegramID).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var txns []*Transaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, WrapRepositoryError(err, "get transactions")
	}
	return txns, nil
}

// CountTransactions returns the length of a user's transaction log.
func (r *gormLedgerRepository) CountTransactions(telegramID int64) (int64, error) {
	var count int64
	err := r.db.Model(&Transaction{}).Where("telegram_id = ?", telegramID).Count(&count).Error
	if err != nil {
		return 0, WrapRepositoryError(err, "count transactions")
	}
	return count, nil
}

// Food choice operations

// UpsertChoice creates or overwrites the choice for (user, day, namespace).
func (r *gormLedgerRepository) UpsertChoice(choice *FoodChoice) error {
	if !choice.Namespace.IsValid() {
		return common.ValidationError{Field: "namespace", Message: fmt.Sprintf("unknown namespace %q", choice.Namespace)}
	}

	r.logger.Debug("Upserting food choice",
		zap.Int64("telegramID", choice.TelegramID),
		zap.String("day", choice.Day.String()),
		zap.String("dish", choice.Dish))

	choice.CreatedAt = time.Now()
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}, {Name: "day"}, {Name: "namespace"}},
		DoUpdates: clause.AssignmentColumns([]string{"dish", "user_name", "created_at"}),
	}).Create(choice).Error

	if err != nil {
		return WrapRepositoryError(err, "upsert food choice")
	}
	return nil
}

// GetChoice retrieves the choice for (user, day, namespace).
func (r *gormLedgerRepository) GetChoice(telegramID int64, day common.Day, ns ChoiceNamespace) (*FoodChoice, error) {
	var choice FoodChoice
	err := r.db.Where("telegram_id = ? AND day = ? AND namespace = ?", telegramID, day, ns).First(&choice).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFoundError{Resource: "FoodChoice", ID: fmt.Sprintf("%d/%s", telegramID, day)}
		}
		return nil, WrapRepositoryError(err, "get food choice")
	}

	return &choice, nil
}

// GetChoicesForDay retrieves every choice recorded for a day in a namespace.
func (r *gormLedgerRepository) GetChoicesForDay(day common.Day, ns ChoiceNamespace) ([]*FoodChoice, error) {
	var choices []*FoodChoice
	err := r.db.Where("day = ? AND namespace = ?", day, ns).Find(&choices).Error
	if err != nil {
		return nil, WrapRepositoryError(err, "get choices for day")
	}
	return choices, nil
}

// GetChoicesForUser retrieves a user's choices across both namespaces.
func (r *gormLedgerRepository) GetChoicesForUser(telegramID int64) ([]*FoodChoice, error) {
	var choices []*FoodChoice
	err := r.db.Where("telegram_id = ?", telegramID).Find(&choices).Error
	if err != nil {
		return nil, WrapRepositoryError(err, "get choices for user")
	}
	return choices, nil
}

// DeleteChoice removes the choice for (user, day, namespace). Missing rows
// are not an error: cancellation may race the nightly cleanup.
func (r *gormLedgerRepository) DeleteChoice(telegramID int64, day common.Day, ns ChoiceNamespace) error {
	err := r.db.Delete(&FoodChoice{}, "telegram_id = ? AND day = ? AND namespace = ?", telegramID, day, ns).Error
	if err != nil {
		return WrapRepositoryError(err, "delete food choice")
	}
	return nil
}

// DeleteChoicesForUser removes a user's choices in both namespaces, used by
// the admin removal cascade.
func (r *gormLedgerRepository) DeleteChoicesForUser(telegramID int64) error {
	err := r.db.Delete(&FoodChoice{}, "telegram_id = ?", telegramID).Error
	if err != nil {
		return WrapRepositoryError(err, "delete choices for user")
	}
	return nil
}

// DeleteChoicesBefore removes every choice, in both namespaces, dated
// strictly before day. Returns the number of rows removed.
func (r *gormLedgerRepository) DeleteChoicesBefore(day common.Day) (int64, error) {
	r.logger.Debug("Deleting stale food choices", zap.String("before", day.String()))

	result := r.db.Delete(&FoodChoice{}, "day < ?", day)
	if result.Error != nil {
		return 0, WrapRepositoryError(result.Error, "delete choices before day")
	}

	r.logger.Info("Stale food choices deleted",
		zap.String("before", day.String()),
		zap.Int64("deleted", result.RowsAffected))
	return result.RowsAffected, nil
}

// CountChoicesByDish aggregates the day's choices grouped by dish,
// descending by count.
func (r *gormLedgerRepository) CountChoicesByDish(day common.Day, ns ChoiceNamespace) ([]DishCount, error) {
	var counts []DishCount
	err := r.db.Model(&FoodChoice{}).
		Select("dish, COUNT(*) AS count").
		Where("day = ? AND namespace = ?", day, ns).
		Group("dish").
		Order("count DESC").
		Scan(&counts).Error

	if err != nil {
		return nil, WrapRepositoryError(err, "count choices by dish")
	}
	return counts, nil
}

// Transaction support

// WithTransaction executes fn within a database transaction.
func (r *gormLedgerRepository) WithTransaction(fn func(LedgerRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		txRepo := &gormLedgerRepository{
			db:     tx,
			logger: r.logger,
		}
		return fn(txRepo)
	})
}
