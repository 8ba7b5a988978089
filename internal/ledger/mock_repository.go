package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"lunchbot-api/internal/common"
)

// MockLedgerRepository is an in-memory LedgerRepository for tests. It keeps
// the same atomicity contract as the GORM implementation: WithTransaction
// snapshots the state and restores it if fn fails.
type MockLedgerRepository struct {
	mu      sync.Mutex
	users   map[int64]*User
	txns    []*Transaction
	choices map[string]*FoodChoice
	nextID  uint64

	// FailOn makes the named operation return an error, for failure-path
	// tests. Cleared by the test itself.
	FailOn map[string]error
}

// NewMockLedgerRepository creates an empty in-memory repository.
func NewMockLedgerRepository() *MockLedgerRepository {
	return &MockLedgerRepository{
		users:   make(map[int64]*User),
		choices: make(map[string]*FoodChoice),
		nextID:  1,
		FailOn:  make(map[string]error),
	}
}

func choiceKey(telegramID int64, day common.Day, ns ChoiceNamespace) string {
	return fmt.Sprintf("%d/%s/%s", telegramID, day, ns)
}

func (m *MockLedgerRepository) fail(op string) error {
	if err, ok := m.FailOn[op]; ok {
		return err
	}
	return nil
}

func copyUser(u *User) *User {
	c := *u
	c.Attendance = append(common.DayList{}, u.Attendance...)
	c.DeclinedDays = append(common.DayList{}, u.DeclinedDays...)
	return &c
}

// User operations

func (m *MockLedgerRepository) CreateUser(user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("CreateUser"); err != nil {
		return err
	}
	if _, exists := m.users[user.TelegramID]; exists {
		return common.ValidationError{Field: "telegram_id", Message: "duplicate user"}
	}

	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.TelegramID] = copyUser(user)
	return nil
}

func (m *MockLedgerRepository) GetUser(telegramID int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("GetUser"); err != nil {
		return nil, err
	}
	u, ok := m.users[telegramID]
	if !ok {
		return nil, common.NotFoundError{Resource: "User", ID: fmt.Sprintf("%d", telegramID)}
	}
	return copyUser(u), nil
}

func (m *MockLedgerRepository) GetAllUsers() ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("GetAllUsers"); err != nil {
		return nil, err
	}

	users := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].TelegramID < users[j].TelegramID })
	return users, nil
}

func (m *MockLedgerRepository) GetAdmins() ([]*User, error) {
	all, err := m.GetAllUsers()
	if err != nil {
		return nil, err
	}

	var admins []*User
	for _, u := range all {
		if u.IsAdmin {
			admins = append(admins, u)
		}
	}
	return admins, nil
}

func (m *MockLedgerRepository) UpdateUser(user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("UpdateUser"); err != nil {
		return err
	}
	if _, ok := m.users[user.TelegramID]; !ok {
		return common.NotFoundError{Resource: "User", ID: fmt.Sprintf("%d", user.TelegramID)}
	}

	user.UpdatedAt = time.Now()
	m.users[user.TelegramID] = copyUser(user)
	return nil
}

func (m *MockLedgerRepository) DeleteUser(telegramID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("DeleteUser"); err != nil {
		return err
	}
	if _, ok := m.users[telegramID]; !ok {
		return common.NotFoundError{Resource: "User", ID: fmt.Sprintf("%d", telegramID)}
	}

	delete(m.users, telegramID)
	return nil
}

// Transaction operations

func (m *MockLedgerRepository) AppendTransaction(txn *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("AppendTransaction"); err != nil {
		return err
	}
	if !txn.Type.IsValid() {
		return common.ValidationError{Field: "type", Message: fmt.Sprintf("unknown transaction type %q", txn.Type)}
	}

	c := *txn
	c.ID = m.nextID
	m.nextID++
	c.CreatedAt = time.Now()
	m.txns = append(m.txns, &c)
	txn.ID = c.ID
	return nil
}

func (m *MockLedgerRepository) GetTransactions(telegramID int64, limit int) ([]*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("GetTransactions"); err != nil {
		return nil, err
	}

	var out []*Transaction
	for i := len(m.txns) - 1; i >= 0; i-- {
		if m.txns[i].TelegramID != telegramID {
			continue
		}
		c := *m.txns[i]
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockLedgerRepository) CountTransactions(telegramID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, t := range m.txns {
		if t.TelegramID == telegramID {
			count++
		}
	}
	return count, nil
}

// Food choice operations

func (m *MockLedgerRepository) UpsertChoice(choice *FoodChoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("UpsertChoice"); err != nil {
		return err
	}
	if !choice.Namespace.IsValid() {
		return common.ValidationError{Field: "namespace", Message: fmt.Sprintf("unknown namespace %q", choice.Namespace)}
	}

	c := *choice
	c.CreatedAt = time.Now()
	key := choiceKey(choice.TelegramID, choice.Day, choice.Namespace)
	if existing, ok := m.choices[key]; ok {
		c.ID = existing.ID
	} else {
		c.ID = m.nextID
		m.nextID++
	}
	m.choices[key] = &c
	return nil
}

func (m *MockLedgerRepository) GetChoice(telegramID int64, day common.Day, ns ChoiceNamespace) (*FoodChoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("GetChoice"); err != nil {
		return nil, err
	}
	c, ok := m.choices[choiceKey(telegramID, day, ns)]
	if !ok {
		return nil, common.NotFoundError{Resource: "FoodChoice", ID: fmt.Sprintf("%d/%s", telegramID, day)}
	}
	out := *c
	return &out, nil
}

func (m *MockLedgerRepository) GetChoicesForDay(day common.Day, ns ChoiceNamespace) ([]*FoodChoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("GetChoicesForDay"); err != nil {
		return nil, err
	}

	var out []*FoodChoice
	for _, c := range m.choices {
		if c.Day == day && c.Namespace == ns {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TelegramID < out[j].TelegramID })
	return out, nil
}

func (m *MockLedgerRepository) GetChoicesForUser(telegramID int64) ([]*FoodChoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("GetChoicesForUser"); err != nil {
		return nil, err
	}

	var out []*FoodChoice
	for _, c := range m.choices {
		if c.TelegramID == telegramID {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Namespace < out[j].Namespace
	})
	return out, nil
}

func (m *MockLedgerRepository) DeleteChoice(telegramID int64, day common.Day, ns ChoiceNamespace) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("DeleteChoice"); err != nil {
		return err
	}
	delete(m.choices, choiceKey(telegramID, day, ns))
	return nil
}

func (m *MockLedgerRepository) DeleteChoicesForUser(telegramID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("DeleteChoicesForUser"); err != nil {
		return err
	}
	for key, c := range m.choices {
		if c.TelegramID == telegramID {
			delete(m.choices, key)
		}
	}
	return nil
}

func (m *MockLedgerRepository) DeleteChoicesBefore(day common.Day) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("DeleteChoicesBefore"); err != nil {
		return 0, err
	}

	var deleted int64
	for key, c := range m.choices {
		if c.Day.Before(day) {
			delete(m.choices, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MockLedgerRepository) CountChoicesByDish(day common.Day, ns ChoiceNamespace) ([]DishCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("CountChoicesByDish"); err != nil {
		return nil, err
	}

	byDish := make(map[string]int64)
	for _, c := range m.choices {
		if c.Day == day && c.Namespace == ns {
			byDish[c.Dish]++
		}
	}

	counts := make([]DishCount, 0, len(byDish))
	for dish, n := range byDish {
		counts = append(counts, DishCount{Dish: dish, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Dish < counts[j].Dish
	})
	return counts, nil
}

// Transaction support

// WithTransaction runs fn against the live state and rolls back to a
// snapshot if fn returns an error, mirroring the database contract.
func (m *MockLedgerRepository) WithTransaction(fn func(LedgerRepository) error) error {
	m.mu.Lock()
	users := make(map[int64]*User, len(m.users))
	for id, u := range m.users {
		users[id] = copyUser(u)
	}
	txns := make([]*Transaction, len(m.txns))
	for i, t := range m.txns {
		c := *t
		txns[i] = &c
	}
	choices := make(map[string]*FoodChoice, len(m.choices))
	for k, c := range m.choices {
		copied := *c
		choices[k] = &copied
	}
	nextID := m.nextID
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.users = users
		m.txns = txns
		m.choices = choices
		m.nextID = nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

// Test helpers

// SeedUser inserts a user directly, bypassing defaults and validation.
func (m *MockLedgerRepository) SeedUser(user *User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.TelegramID] = copyUser(user)
}

// TransactionCount returns the total number of records in the log.
func (m *MockLedgerRepository) TransactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txns)
}

// AllTransactions returns the full log in append order.
func (m *MockLedgerRepository) AllTransactions() []*Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Transaction, len(m.txns))
	for i, t := range m.txns {
		c := *t
		out[i] = &c
	}
	return out
}
