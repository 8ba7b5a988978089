package ledger

import (
	"lunchbot-api/internal/common"
)

// LedgerRepository is the persistence boundary for users, transactions and
// food choices. Implementations must guarantee that everything done inside
// WithTransaction applies atomically or not at all; every balance mutation
// funnels through it together with its attendance-list change and
// transaction-log append.
type LedgerRepository interface {
	// User operations
	CreateUser(user *User) error
	GetUser(telegramID int64) (*User, error)
	GetAllUsers() ([]*User, error)
	GetAdmins() ([]*User, error)
	UpdateUser(user *User) error
	DeleteUser(telegramID int64) error

	// Transaction operations (append-only: no update or delete exists)
	AppendTransaction(txn *Transaction) error
	GetTransactions(telegramID int64, limit int) ([]*Transaction, error)
	CountTransactions(telegramID int64) (int64, error)

	// Food choice operations
	UpsertChoice(choice *FoodChoice) error
	GetChoice(telegramID int64, day common.Day, ns ChoiceNamespace) (*FoodChoice, error)
	GetChoicesForDay(day common.Day, ns ChoiceNamespace) ([]*FoodChoice, error)
	GetChoicesForUser(telegramID int64) ([]*FoodChoice, error)
	DeleteChoice(telegramID int64, day common.Day, ns ChoiceNamespace) error
	DeleteChoicesForUser(telegramID int64) error
	DeleteChoicesBefore(day common.Day) (int64, error)
	CountChoicesByDish(day common.Day, ns ChoiceNamespace) ([]DishCount, error)

	// Transaction support
	WithTransaction(fn func(LedgerRepository) error) error
}
