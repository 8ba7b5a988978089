package ledger

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"lunchbot-api/internal/common"
	"lunchbot-api/internal/config"
	"lunchbot-api/internal/events"
)

// Service is the attendance ledger. Every balance mutation funnels through
// it so the attendance list, the balance and the transaction log change
// together, serialized per user.
type Service interface {
	Register(input RegisterInput) (*User, bool, error)
	GetUser(telegramID int64) (*User, error)
	ListUsers() ([]*User, error)

	Confirm(telegramID int64, day common.Day, dish string, ns ChoiceNamespace) (*ConfirmResult, error)
	Choice(telegramID int64, day common.Day, ns ChoiceNamespace) (string, error)
	Cancel(telegramID int64, day common.Day) (*User, error)
	Decline(telegramID int64, day common.Day) (*User, error)
	ClearDecline(telegramID int64, day common.Day) error

	AdjustBalance(telegramID int64, amount int64, description string) (*User, error)
	SetDailyPrice(telegramID int64, price int64) (*User, error)
	ChangeName(telegramID int64, newName string) (*User, error)
	SetAdmin(telegramID int64, admin bool) (*User, error)
	RemoveUser(telegramID int64) error
	MarkBalanceNoticed(telegramID int64, day common.Day) error

	Transactions(telegramID int64, limit int) ([]*Transaction, error)
	CancelDay(day common.Day, reason string, adminID int64) (*DayCancellation, error)
}

// RegisterInput is the validated registration payload.
type RegisterInput struct {
	TelegramID int64  `validate:"required"`
	Name       string `validate:"required,min=2,max=50"`
	Phone      string `validate:"required"`
}

// ConfirmResult reports the outcome of a confirmation. AlreadyConfirmed
// means the day was already in attendance and nothing was charged.
type ConfirmResult struct {
	User             *User
	AlreadyConfirmed bool
}

// RefundEntry names one user refunded by a day-wide cancellation.
type RefundEntry struct {
	TelegramID int64
	Amount     int64
}

// DayCancellation summarizes a day-wide reversal for admin confirmation.
type DayCancellation struct {
	Day     common.Day
	Reason  string
	Refunds []RefundEntry
	UserIDs []int64
}

// Affected returns the number of users refunded.
func (c *DayCancellation) Affected() int {
	return len(c.Refunds)
}

var phonePattern = regexp.MustCompile(`^\+998\d{9}$`)

// NormalizePhone strips separators and enforces the +998 country code.
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := "+" + b.String()
	if !phonePattern.MatchString(cleaned) {
		return "", common.ValidationError{Field: "phone", Message: "phone must be an Uzbek number (+998XXXXXXXXX)"}
	}
	return cleaned, nil
}

type service struct {
	repository LedgerRepository
	eventBus   events.EventBus
	logger     *zap.Logger
	validate   *validator.Validate
	clock      common.Clock
	window     CancellationWindow
	defaults   Defaults
	locks      *userLocks
	location   *time.Location
}

// NewService creates the ledger service.
func NewService(repository LedgerRepository, eventBus events.EventBus, logger *zap.Logger,
	cfg config.LedgerConfig, location *time.Location, clock common.Clock) Service {
	return &service{
		repository: repository,
		eventBus:   eventBus,
		logger:     logger,
		validate:   validator.New(),
		clock:      clock,
		window:     CancellationWindow{CutoffHour: cfg.CancelCutoffHour, Location: location},
		defaults:   Defaults{Balance: cfg.DefaultBalance, DailyPrice: cfg.DefaultDailyPrice},
		locks:      newUserLocks(),
		location:   location,
	}
}

// Register creates a user on first /start. Hitting an existing user returns
// it unchanged with created=false; validation failures never touch the store.
func (s *service) Register(input RegisterInput) (*User, bool, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, false, common.ValidationError{Field: "registration", Message: err.Error()}
	}

	phone, err := NormalizePhone(input.Phone)
	if err != nil {
		return nil, false, err
	}

	unlock := s.locks.Lock(input.TelegramID)
	defer unlock()

	existing, err := s.repository.GetUser(input.TelegramID)
	if err == nil {
		return existing, false, nil
	}
	if !isNotFound(err) {
		return nil, false, NewLedgerError("register", input.TelegramID, err)
	}

	user := NewUser(input.TelegramID, strings.TrimSpace(input.Name), phone, s.defaults)
	if err := s.repository.CreateUser(user); err != nil {
		return nil, false, NewLedgerError("register", input.TelegramID, err)
	}

	s.eventBus.Publish(events.TopicUserRegistered, events.UserRegistered{
		Event:      events.NewEvent(),
		TelegramID: user.TelegramID,
		Name:       user.Name,
	})

	s.logger.Info("User registered",
		zap.Int64("telegramID", user.TelegramID),
		zap.Int64("balance", user.Balance),
		zap.Int64("dailyPrice", user.DailyPrice))
	return user, true, nil
}

func (s *service) GetUser(telegramID int64) (*User, error) {
	return s.repository.GetUser(telegramID)
}

func (s *service) ListUsers() ([]*User, error) {
	return s.repository.GetAllUsers()
}

// Confirm moves (user, day) to confirmed: the day joins the attendance list,
// the daily price is debited, an attendance transaction is appended and the
// dish recorded, all in one store transaction. Confirming an already
// confirmed day is an idempotent no-op that surfaces current state. A
// test-namespace confirm records only the choice.
func (s *service) Confirm(telegramID int64, day common.Day, dish string, ns ChoiceNamespace) (*ConfirmResult, error) {
	if !day.IsValid() {
		return nil, common.ValidationError{Field: "day", Message: fmt.Sprintf("invalid day %q", day)}
	}
	if !ns.IsValid() {
		return nil, common.ValidationError{Field: "namespace", Message: fmt.Sprintf("unknown namespace %q", ns)}
	}

	unlock := s.locks.Lock(telegramID)
	defer unlock()

	// The test namespace is a dry run: the choice is recorded for the
	// summary rehearsal but attendance and balance stay untouched.
	if ns == NamespaceTest {
		return s.confirmDryRun(telegramID, day, dish, ns)
	}

	var result *ConfirmResult
	err := s.repository.WithTransaction(func(tx LedgerRepository) error {
		user, err := tx.GetUser(telegramID)
		if err != nil {
			return err
		}

		if user.HasConfirmed(day) {
			result = &ConfirmResult{User: user, AlreadyConfirmed: true}
			return nil
		}

		// A day never sits in attendance and declined at once.
		user.DeclinedDays = user.DeclinedDays.Remove(day)
		user.Attendance = user.Attendance.Add(day)
		user.Balance -= user.DailyPrice

		if err := tx.UpdateUser(user); err != nil {
			return err
		}
		if err := tx.AppendTransaction(&Transaction{
			TelegramID:  telegramID,
			Type:        TxnAttendance,
			Amount:      -user.DailyPrice,
			Description: fmt.Sprintf("Lunch on %s", day),
		}); err != nil {
			return err
		}

		if dish != "" {
			if err := tx.UpsertChoice(&FoodChoice{
				TelegramID: telegramID,
				Day:        day,
				Namespace:  ns,
				Dish:       dish,
				UserName:   user.Name,
			}); err != nil {
				return err
			}
		}

		result = &ConfirmResult{User: user}
		return nil
	})
	if err != nil {
		return nil, NewLedgerError("confirm", telegramID, err)
	}

	if !result.AlreadyConfirmed {
		s.eventBus.Publish(events.TopicAttendanceConfirmed, events.AttendanceConfirmed{
			Event:      events.NewEvent(),
			TelegramID: telegramID,
			Day:        day,
			Dish:       dish,
			NewBalance: result.User.Balance,
		})
		s.logger.Info("Attendance confirmed",
			zap.Int64("telegramID", telegramID),
			zap.String("day", day.String()),
			zap.String("dish", dish),
			zap.Int64("balance", result.User.Balance))
	}

	return result, nil
}

// confirmDryRun records a test-namespace choice without touching attendance
// or the balance. Caller holds the user lock.
func (s *service) confirmDryRun(telegramID int64, day common.Day, dish string, ns ChoiceNamespace) (*ConfirmResult, error) {
	user, err := s.repository.GetUser(telegramID)
	if err != nil {
		return nil, NewLedgerError("confirm", telegramID, err)
	}

	if dish != "" {
		if err := s.repository.UpsertChoice(&FoodChoice{
			TelegramID: telegramID,
			Day:        day,
			Namespace:  ns,
			Dish:       dish,
			UserName:   user.Name,
		}); err != nil {
			return nil, NewLedgerError("confirm", telegramID, err)
		}
	}

	return &ConfirmResult{User: user}, nil
}

// Choice returns the dish recorded for a day, or empty when none exists.
func (s *service) Choice(telegramID int64, day common.Day, ns ChoiceNamespace) (string, error) {
	choice, err := s.repository.GetChoice(telegramID, day, ns)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", WrapRepositoryError(err, "get choice")
	}
	return choice.Dish, nil
}

// Cancel reverses a confirmation before the cutoff: the day leaves the
// attendance list, the daily price is credited back, a refund transaction is
// appended and the food choice deleted.
func (s *service) Cancel(telegramID int64, day common.Day) (*User, error) {
	if err := s.window.Allows(s.clock.Now(), day); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(telegramID)
	defer unlock()

	user, err := s.reverseAttendance(telegramID, day, fmt.Sprintf("Cancel lunch on %s", day))
	if err != nil {
		return nil, err
	}

	s.eventBus.Publish(events.TopicAttendanceCancelled, events.AttendanceCancelled{
		Event:      events.NewEvent(),
		TelegramID: telegramID,
		Day:        day,
		NewBalance: user.Balance,
	})
	s.logger.Info("Attendance cancelled",
		zap.Int64("telegramID", telegramID),
		zap.String("day", day.String()),
		zap.Int64("balance", user.Balance))
	return user, nil
}

// Decline marks an explicit opt-out for day. A currently confirmed day is
// first reversed with a full refund so no stale debit remains; reversal of a
// confirmed day obeys the same cutoff as cancellation.
func (s *service) Decline(telegramID int64, day common.Day) (*User, error) {
	unlock := s.locks.Lock(telegramID)
	defer unlock()

	var out *User
	err := s.repository.WithTransaction(func(tx LedgerRepository) error {
		user, err := tx.GetUser(telegramID)
		if err != nil {
			return err
		}

		if user.HasConfirmed(day) {
			if err := s.window.Allows(s.clock.Now(), day); err != nil {
				return err
			}
			if err := refundUser(tx, user, day, fmt.Sprintf("Declined lunch on %s", day)); err != nil {
				return err
			}
		}

		user.DeclinedDays = user.DeclinedDays.Add(day)
		if err := tx.UpdateUser(user); err != nil {
			return err
		}

		out = user
		return nil
	})
	if err != nil {
		if IsUserVisible(err) {
			return nil, err
		}
		return nil, NewLedgerError("decline", telegramID, err)
	}

	s.logger.Info("Attendance declined",
		zap.Int64("telegramID", telegramID),
		zap.String("day", day.String()))
	return out, nil
}

// ClearDecline moves (user, day) from declined back to unset with no balance
// effect, used when a user re-engages the flow for a day they had declined.
func (s *service) ClearDecline(telegramID int64, day common.Day) error {
	unlock := s.locks.Lock(telegramID)
	defer unlock()

	return s.repository.WithTransaction(func(tx LedgerRepository) error {
		user, err := tx.GetUser(telegramID)
		if err != nil {
			return err
		}
		if !user.HasDeclined(day) {
			return nil
		}

		user.DeclinedDays = user.DeclinedDays.Remove(day)
		return tx.UpdateUser(user)
	})
}

// AdjustBalance applies an admin credit or debit with a balance transaction.
func (s *service) AdjustBalance(telegramID int64, amount int64, description string) (*User, error) {
	if description == "" {
		description = "Balance adjustment"
	}

	unlock := s.locks.Lock(telegramID)
	defer unlock()

	var out *User
	err := s.repository.WithTransaction(func(tx LedgerRepository) error {
		user, err := tx.GetUser(telegramID)
		if err != nil {
			return err
		}

		user.Balance += amount
		if err := tx.UpdateUser(user); err != nil {
			return err
		}
		if err := tx.AppendTransaction(&Transaction{
			TelegramID:  telegramID,
			Type:        TxnBalance,
			Amount:      amount,
			Description: description,
		}); err != nil {
			return err
		}

		out = user
		return nil
	})
	if err != nil {
		return nil, NewLedgerError("adjust balance", telegramID, err)
	}

	s.logger.Info("Balance adjusted",
		zap.Int64("telegramID", telegramID),
		zap.Int64("amount", amount),
		zap.Int64("balance", out.Balance))
	return out, nil
}

// SetDailyPrice updates the per-user daily price with a zero-amount marker.
func (s *service) SetDailyPrice(telegramID int64, price int64) (*User, error) {
	if price < 0 {
		return nil, common.ValidationError{Field: "price", Message: "daily price cannot be negative"}
	}

	unlock := s.locks.Lock(telegramID)
	defer unlock()

	var out *User
	err := s.repository.WithTransaction(func(tx LedgerRepository) error {
		user, err := tx.GetUser(telegramID)
		if err != nil {
			return err
		}

		user.DailyPrice = price
		if err := tx.UpdateUser(user); err != nil {
			return err
		}
		if err := tx.AppendTransaction(&Transaction{
			TelegramID:  telegramID,
			Type:        TxnPrice,
			Description: fmt.Sprintf("Daily price set to %d", price),
		}); err != nil {
			return err
		}

		out = user
		return nil
	})
	if err != nil {
		return nil, NewLedgerError("set daily price", telegramID, err)
	}
	return out, nil
}

// ChangeName renames a user and refreshes the denormalized name on any food
// choices recorded for days that have not passed yet.
func (s *service) ChangeName(telegramID int64, newName string) (*User, error) {
	newName = strings.TrimSpace(newName)
	if len(newName) < 2 || len(newName) > 50 {
		return nil, common.ValidationError{Field: "name", Message: "name must be 2-50 characters"}
	}

	unlock := s.locks.Lock(telegramID)
	defer unlock()

	var out *User
	err := s.repository.WithTransaction(func(tx LedgerRepository) error {
		user, err := tx.GetUser(telegramID)
		if err != nil {
			return err
		}

		old := user.Name
		user.Name = newName
		if err := tx.UpdateUser(user); err != nil {
			return err
		}

		// Choices for days still ahead carry the denormalized name into
		// the daily summary; stale past-day rows are left for cleanup.
		today := common.DayOf(s.clock.Now().In(s.location))
		choices, err := tx.GetChoicesForUser(telegramID)
		if err != nil {
			return err
		}
		for _, c := range choices {
			if c.Day.Before(today) {
				continue
			}
			c.UserName = newName
			if err := tx.UpsertChoice(c); err != nil {
				return err
			}
		}

		if err := tx.AppendTransaction(&Transaction{
			TelegramID:  telegramID,
			Type:        TxnName,
			Description: fmt.Sprintf("Name changed from %s to %s", old, newName),
		}); err != nil {
			return err
		}

		out = user
		return nil
	})
	if err != nil {
		return nil, NewLedgerError("change name", telegramID, err)
	}
	return out, nil
}

// SetAdmin flips the admin flag with a zero-amount marker transaction.
func (s *service) SetAdmin(telegramID int64, admin bool) (*User, error) {
	unlock := s.locks.Lock(telegramID)
	defer unlock()

	var out *User
	err := s.repository.WithTransaction(func(tx LedgerRepository) error {
		user, err := tx.GetUser(telegramID)
		if err != nil {
			return err
		}

		user.IsAdmin = admin
		if err := tx.UpdateUser(user); err != nil {
			return err
		}

		desc := "Promoted to admin"
		if !admin {
			desc = "Demoted from admin"
		}
		if err := tx.AppendTransaction(&Transaction{
			TelegramID:  telegramID,
			Type:        TxnAdmin,
			Description: desc,
		}); err != nil {
			return err
		}

		out = user
		return nil
	})
	if err != nil {
		return nil, NewLedgerError("set admin", telegramID, err)
	}
	return out, nil
}

// RemoveUser hard-deletes a user and cascades their food choices in both
// namespaces. The transaction log is retained for audit.
func (s *service) RemoveUser(telegramID int64) error {
	unlock := s.locks.Lock(telegramID)
	defer unlock()

	err := s.repository.WithTransaction(func(tx LedgerRepository) error {
		if err := tx.DeleteChoicesForUser(telegramID); err != nil {
			return err
		}
		return tx.DeleteUser(telegramID)
	})
	if err != nil {
		if IsUserVisible(err) {
			return err
		}
		return NewLedgerError("remove user", telegramID, err)
	}

	s.logger.Info("User removed", zap.Int64("telegramID", telegramID))
	return nil
}

// MarkBalanceNoticed stamps the low-balance notice day so the notifier
// rate-limits to once per calendar day per user.
func (s *service) MarkBalanceNoticed(telegramID int64, day common.Day) error {
	unlock := s.locks.Lock(telegramID)
	defer unlock()

	return s.repository.WithTransaction(func(tx LedgerRepository) error {
		user, err := tx.GetUser(telegramID)
		if err != nil {
			return err
		}
		user.LastBalanceNotice = day
		return tx.UpdateUser(user)
	})
}

// Transactions returns a user's audit log, newest first.
func (s *service) Transactions(telegramID int64, limit int) ([]*Transaction, error) {
	return s.repository.GetTransactions(telegramID, limit)
}

// CancelDay bulk-reverses one day's attendance across all users: everyone
// confirmed for the day is refunded their own daily price and the day
// removed. Per-user failures are logged and skipped, never fatal to the
// batch. The returned summary feeds the admin confirmation message and the
// day-wide notification fan-out.
func (s *service) CancelDay(day common.Day, reason string, adminID int64) (*DayCancellation, error) {
	if !day.IsValid() {
		return nil, common.ValidationError{Field: "day", Message: fmt.Sprintf("invalid day %q", day)}
	}

	users, err := s.repository.GetAllUsers()
	if err != nil {
		return nil, NewLedgerError("cancel day", adminID, err)
	}

	cancellation := &DayCancellation{Day: day, Reason: reason}
	for _, u := range users {
		cancellation.UserIDs = append(cancellation.UserIDs, u.TelegramID)
		if !u.HasConfirmed(day) {
			continue
		}

		unlock := s.locks.Lock(u.TelegramID)
		amount := u.DailyPrice
		err := s.repository.WithTransaction(func(tx LedgerRepository) error {
			user, err := tx.GetUser(u.TelegramID)
			if err != nil {
				return err
			}
			if !user.HasConfirmed(day) {
				return ErrNotConfirmed
			}
			amount = user.DailyPrice
			return refundUser(tx, user, day, fmt.Sprintf("Lunch cancellation on %s: %s", day, reason))
		})
		unlock()

		if err != nil {
			s.logger.Error("Failed to refund user during day cancellation",
				zap.Int64("telegramID", u.TelegramID),
				zap.String("day", day.String()),
				zap.Error(err))
			continue
		}

		cancellation.Refunds = append(cancellation.Refunds, RefundEntry{
			TelegramID: u.TelegramID,
			Amount:     amount,
		})
	}

	refunds := make([]events.Refund, 0, len(cancellation.Refunds))
	for _, r := range cancellation.Refunds {
		refunds = append(refunds, events.Refund{TelegramID: r.TelegramID, Amount: r.Amount})
	}
	s.eventBus.Publish(events.TopicDayCancelled, events.DayCancelled{
		Event:   events.NewEvent(),
		Day:     day,
		Reason:  reason,
		AdminID: adminID,
		Refunds: refunds,
		UserIDs: cancellation.UserIDs,
	})

	s.logger.Info("Day cancelled",
		zap.String("day", day.String()),
		zap.String("reason", reason),
		zap.Int("affected", cancellation.Affected()))
	return cancellation, nil
}

// reverseAttendance removes day from a user's attendance inside one store
// transaction: credit, refund record, food choice deletion.
func (s *service) reverseAttendance(telegramID int64, day common.Day, description string) (*User, error) {
	var out *User
	err := s.repository.WithTransaction(func(tx LedgerRepository) error {
		user, err := tx.GetUser(telegramID)
		if err != nil {
			return err
		}
		if !user.HasConfirmed(day) {
			return ErrNotConfirmed
		}
		if err := refundUser(tx, user, day, description); err != nil {
			return err
		}
		out = user
		return nil
	})
	if err != nil {
		if IsUserVisible(err) {
			return nil, err
		}
		return nil, NewLedgerError("cancel", telegramID, err)
	}
	return out, nil
}

// refundUser applies the cancellation effect to an already-loaded user
// within the caller's transaction.
func refundUser(tx LedgerRepository, user *User, day common.Day, description string) error {
	user.Attendance = user.Attendance.Remove(day)
	user.Balance += user.DailyPrice

	if err := tx.UpdateUser(user); err != nil {
		return err
	}
	if err := tx.AppendTransaction(&Transaction{
		TelegramID:  user.TelegramID,
		Type:        TxnRefund,
		Amount:      user.DailyPrice,
		Description: description,
	}); err != nil {
		return err
	}
	return tx.DeleteChoice(user.TelegramID, day, NamespaceLive)
}

func isNotFound(err error) bool {
	var notFound common.NotFoundError
	return errors.As(err, &notFound)
}
