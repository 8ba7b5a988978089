package events

import (
	"time"

	"github.com/google/uuid"

	"lunchbot-api/internal/common"
)

// Event is the base event structure with common fields.
type Event struct {
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewEvent creates a new base event with a generated correlation ID.
func NewEvent() Event {
	return Event{
		CorrelationID: uuid.New().String(),
		Timestamp:     time.Now(),
	}
}

// UserRegistered is published when a new user completes registration.
type UserRegistered struct {
	Event
	TelegramID int64  `json:"telegram_id"`
	Name       string `json:"name"`
}

// AttendanceConfirmed is published after a confirm commits: the day was
// appended to attendance and the daily price debited.
type AttendanceConfirmed struct {
	Event
	TelegramID int64      `json:"telegram_id"`
	Day        common.Day `json:"day"`
	Dish       string     `json:"dish"`
	NewBalance int64      `json:"new_balance"`
}

// AttendanceCancelled is published after a cancellation commits: the day was
// removed from attendance and the daily price refunded.
type AttendanceCancelled struct {
	Event
	TelegramID int64      `json:"telegram_id"`
	Day        common.Day `json:"day"`
	NewBalance int64      `json:"new_balance"`
}

// DayCancelled is published after an admin cancels a whole day. The chatbot
// notifies every user; affected users' messages name the refunded amount.
type DayCancelled struct {
	Event
	Day     common.Day `json:"day"`
	Reason  string     `json:"reason"`
	AdminID int64      `json:"admin_id"`
	Refunds []Refund   `json:"refunds"`
	UserIDs []int64    `json:"user_ids"`
}

// Refund names one user made whole by a day-wide cancellation.
type Refund struct {
	TelegramID int64 `json:"telegram_id"`
	Amount     int64 `json:"amount"`
}

// MorningPromptDue fires at the morning prompt time on weekdays; the chatbot
// sends every listed user a yes/no attendance keyboard.
type MorningPromptDue struct {
	Event
	Day     common.Day `json:"day"`
	UserIDs []int64    `json:"user_ids"`
}

// AttendeeSummary is one confirmed attendee in the daily summary.
type AttendeeSummary struct {
	TelegramID int64  `json:"telegram_id"`
	Name       string `json:"name"`
	Dish       string `json:"dish"`
	Balance    int64  `json:"balance"`
}

// DishCount is the aggregate count for one dish, ordered descending.
type DishCount struct {
	Dish  string `json:"dish"`
	Count int64  `json:"count"`
}

// DailySummaryReady carries the computed roster for the cutoff summary.
// TopDishes holds every dish tied for the maximum count, not an arbitrary
// single winner.
type DailySummaryReady struct {
	Event
	Day       common.Day        `json:"day"`
	Attendees []AttendeeSummary `json:"attendees"`
	Counts    []DishCount       `json:"counts"`
	TopDishes []string          `json:"top_dishes"`
	Declined  []string          `json:"declined"`
	Pending   []string          `json:"pending"`
	AdminIDs  []int64           `json:"admin_ids"`
}

// DebtReminderDue fires once per debtor per debt-check run.
type DebtReminderDue struct {
	Event
	TelegramID int64 `json:"telegram_id"`
	Balance    int64 `json:"balance"`
}

// LowBalanceNoticeDue fires for users under the low-balance threshold,
// at most once per calendar day per user.
type LowBalanceNoticeDue struct {
	Event
	TelegramID int64 `json:"telegram_id"`
	Balance    int64 `json:"balance"`
}

// Event topics constants.
const (
	TopicUserRegistered      = "user.registered"
	TopicAttendanceConfirmed = "attendance.confirmed"
	TopicAttendanceCancelled = "attendance.cancelled"
	TopicDayCancelled        = "day.cancelled"
	TopicMorningPromptDue    = "morning.prompt.due"
	TopicDailySummaryReady   = "daily.summary.ready"
	TopicDebtReminderDue     = "debt.reminder.due"
	TopicLowBalanceNoticeDue = "lowbalance.notice.due"
)
