package ledger

import (
	"time"

	"lunchbot-api/internal/common"
)

// TxnType is the closed set of transaction kinds the ledger records.
type TxnType string

const (
	// TxnAttendance debits the daily price when a day is confirmed.
	TxnAttendance TxnType = "attendance"
	// TxnRefund credits the daily price back on cancellation, user- or
	// admin-initiated.
	TxnRefund TxnType = "refund"
	// TxnBalance is an explicit admin balance adjustment.
	TxnBalance TxnType = "balance"
	// TxnPrice, TxnAdmin and TxnName are zero-amount audit markers.
	TxnPrice TxnType = "price"
	TxnAdmin TxnType = "admin"
	TxnName  TxnType = "name"
)

// IsValid checks if the transaction type is one of the closed set.
func (t TxnType) IsValid() bool {
	switch t {
	case TxnAttendance, TxnRefund, TxnBalance, TxnPrice, TxnAdmin, TxnName:
		return true
	default:
		return false
	}
}

// ChoiceNamespace separates live food choices from the dry-run namespace
// used by test broadcasts. Both are subject to the nightly cleanup.
type ChoiceNamespace string

const (
	NamespaceLive ChoiceNamespace = "live"
	NamespaceTest ChoiceNamespace = "test"
)

// IsValid checks if the namespace is one of the closed set.
func (n ChoiceNamespace) IsValid() bool {
	return n == NamespaceLive || n == NamespaceTest
}

// User is one registered participant. Balance is signed: negative means
// debt, consumed by the debt-reminder job. A calendar day appears in at
// most one of Attendance and DeclinedDays at any observable point.
type User struct {
	TelegramID        int64          `json:"telegram_id" gorm:"primaryKey;autoIncrement:false"`
	Name              string         `json:"name" gorm:"type:varchar(100);not null"`
	Phone             string         `json:"phone" gorm:"type:varchar(20);not null"`
	Balance           int64          `json:"balance" gorm:"not null"`
	DailyPrice        int64          `json:"daily_price" gorm:"not null"`
	Attendance        common.DayList `json:"attendance" gorm:"type:jsonb;not null;default:'[]'"`
	DeclinedDays      common.DayList `json:"declined_days" gorm:"type:jsonb;not null;default:'[]'"`
	IsAdmin           bool           `json:"is_admin" gorm:"not null;default:false"`
	LastBalanceNotice common.Day     `json:"last_balance_notice" gorm:"type:varchar(10)"`
	CreatedAt         time.Time      `json:"created_at" gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP"`
}

// Transaction is one append-only audit record. Rows are never updated,
// reordered or deleted by any ledger operation.
type Transaction struct {
	ID          uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	TelegramID  int64     `json:"telegram_id" gorm:"not null;index"`
	Type        TxnType   `json:"type" gorm:"type:varchar(20);not null"`
	Amount      int64     `json:"amount" gorm:"not null"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP"`
}

// FoodChoice is the dish a user picked for one day. The user name is
// denormalized so aggregate reporting needs no join.
type FoodChoice struct {
	ID         uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	TelegramID int64           `json:"telegram_id" gorm:"not null;uniqueIndex:idx_choices_user_day_ns"`
	Day        common.Day      `json:"day" gorm:"type:varchar(10);not null;uniqueIndex:idx_choices_user_day_ns;index"`
	Namespace  ChoiceNamespace `json:"namespace" gorm:"type:varchar(10);not null;default:'live';uniqueIndex:idx_choices_user_day_ns"`
	Dish       string          `json:"dish" gorm:"type:varchar(100);not null"`
	UserName   string          `json:"user_name" gorm:"type:varchar(100)"`
	CreatedAt  time.Time       `json:"created_at" gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP"`
}

// DishCount is the aggregate for one dish on one day, ordered descending
// by count.
type DishCount struct {
	Dish  string `json:"dish"`
	Count int64  `json:"count"`
}

// Defaults carries the configured values applied when a user record is
// constructed. All defaulting happens in NewUser so every consumer sees a
// fully populated entity.
type Defaults struct {
	Balance    int64
	DailyPrice int64
}

// NewUser constructs a fully populated user record with the configured
// financial defaults.
func NewUser(telegramID int64, name, phone string, d Defaults) *User {
	now := time.Now()
	return &User{
		TelegramID:   telegramID,
		Name:         name,
		Phone:        phone,
		Balance:      d.Balance,
		DailyPrice:   d.DailyPrice,
		Attendance:   common.DayList{},
		DeclinedDays: common.DayList{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HasConfirmed reports whether the user is confirmed (and debited) for day.
func (u *User) HasConfirmed(day common.Day) bool {
	return u.Attendance.Contains(day)
}

// HasDeclined reports whether the user explicitly opted out for day.
func (u *User) HasDeclined(day common.Day) bool {
	return u.DeclinedDays.Contains(day)
}

// InDebt reports whether the balance is negative.
func (u *User) InDebt() bool {
	return u.Balance < 0
}

// TableName returns the table name for the User model.
func (User) TableName() string {
	return "users"
}

// TableName returns the table name for the Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}

// TableName returns the table name for the FoodChoice model.
func (FoodChoice) TableName() string {
	return "food_choices"
}
