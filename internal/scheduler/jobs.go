package scheduler

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"lunchbot-api/internal/common"
	"lunchbot-api/internal/events"
	"lunchbot-api/internal/ledger"
	"lunchbot-api/internal/menu"
	"lunchbot-api/internal/sheets"
)

// Jobs holds the scheduled job implementations. Each job computes its
// recipients and payload from the store and publishes one or more events;
// the chatbot side owns the actual sends. Jobs are read-mostly: only the
// low-balance stamp, the nightly cleanup and the sheet sync write.
type Jobs struct {
	repository          ledger.LedgerRepository
	service             ledger.Service
	reconciler          *sheets.Reconciler
	eventBus            events.EventBus
	logger              *zap.Logger
	clock               common.Clock
	location            *time.Location
	lowBalanceThreshold int64
}

// NewJobs wires the job set. reconciler may be nil when sheet sync is
// disabled.
func NewJobs(repository ledger.LedgerRepository, service ledger.Service, reconciler *sheets.Reconciler,
	eventBus events.EventBus, logger *zap.Logger, clock common.Clock, location *time.Location,
	lowBalanceThreshold int64) *Jobs {
	return &Jobs{
		repository:          repository,
		service:             service,
		reconciler:          reconciler,
		eventBus:            eventBus,
		logger:              logger,
		clock:               clock,
		location:            location,
		lowBalanceThreshold: lowBalanceThreshold,
	}
}

func (j *Jobs) now() time.Time {
	return j.clock.Now().In(j.location)
}

func (j *Jobs) today() common.Day {
	return common.DayOf(j.now())
}

// RunMorningPrompt publishes the attendance prompt for every registered
// user. Early answers do not exempt anyone: the prompt doubles as the
// daily menu announcement. Weekends are skipped: no lunch is served, so
// no prompt goes out.
func (j *Jobs) RunMorningPrompt() (int, error) {
	now := j.now()
	day := common.DayOf(now)
	if !menu.IsWorkday(now) {
		j.logger.Debug("Morning prompt skipped on a weekend", zap.String("day", day.String()))
		return 0, nil
	}

	users, err := j.repository.GetAllUsers()
	if err != nil {
		return 0, NewJobError("morning_prompt", err)
	}

	recipients := make([]int64, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, u.TelegramID)
	}

	if len(recipients) == 0 {
		j.logger.Info("Morning prompt: nobody to ask", zap.String("day", day.String()))
		return 0, nil
	}

	j.eventBus.Publish(events.TopicMorningPromptDue, events.MorningPromptDue{
		Event:   events.NewEvent(),
		Day:     day,
		UserIDs: recipients,
	})

	j.logger.Info("Morning prompt published",
		zap.String("day", day.String()),
		zap.Int("recipients", len(recipients)))
	return len(recipients), nil
}

// RunDailySummary computes the cutoff roster and publishes it for the
// admins: confirmed attendees with dishes and balances, dish counts, the
// top dishes including ties, plus declined and still-pending names. The
// job is strictly read-only; it never flips anyone's state.
func (j *Jobs) RunDailySummary() (int, error) {
	now := j.now()
	day := common.DayOf(now)
	if !menu.IsWorkday(now) {
		return 0, nil
	}

	users, err := j.repository.GetAllUsers()
	if err != nil {
		return 0, NewJobError("daily_summary", err)
	}

	choices, err := j.repository.GetChoicesForDay(day, ledger.NamespaceLive)
	if err != nil {
		return 0, NewJobError("daily_summary", err)
	}
	dishByUser := make(map[int64]string, len(choices))
	for _, c := range choices {
		dishByUser[c.TelegramID] = c.Dish
	}

	counts, err := j.repository.CountChoicesByDish(day, ledger.NamespaceLive)
	if err != nil {
		return 0, NewJobError("daily_summary", err)
	}

	summary := events.DailySummaryReady{
		Event:     events.NewEvent(),
		Day:       day,
		TopDishes: topDishes(counts),
	}
	for _, c := range counts {
		summary.Counts = append(summary.Counts, events.DishCount{Dish: c.Dish, Count: c.Count})
	}

	for _, u := range users {
		switch {
		case u.HasConfirmed(day):
			summary.Attendees = append(summary.Attendees, events.AttendeeSummary{
				TelegramID: u.TelegramID,
				Name:       u.Name,
				Dish:       dishByUser[u.TelegramID],
				Balance:    u.Balance,
			})
		case u.HasDeclined(day):
			summary.Declined = append(summary.Declined, u.Name)
		default:
			summary.Pending = append(summary.Pending, u.Name)
		}
		if u.IsAdmin {
			summary.AdminIDs = append(summary.AdminIDs, u.TelegramID)
		}
	}

	if len(summary.AdminIDs) == 0 {
		j.logger.Warn("Daily summary computed but no admins registered",
			zap.String("day", day.String()))
		return 0, nil
	}

	j.eventBus.Publish(events.TopicDailySummaryReady, summary)

	j.logger.Info("Daily summary published",
		zap.String("day", day.String()),
		zap.Int("attendees", len(summary.Attendees)),
		zap.Int("declined", len(summary.Declined)),
		zap.Int("pending", len(summary.Pending)),
		zap.Strings("topDishes", summary.TopDishes))
	return len(summary.AdminIDs), nil
}

// topDishes returns every dish tied for the maximum count. counts arrive
// ordered descending from the store.
func topDishes(counts []ledger.DishCount) []string {
	if len(counts) == 0 {
		return nil
	}

	max := counts[0].Count
	var top []string
	for _, c := range counts {
		if c.Count != max {
			break
		}
		top = append(top, c.Dish)
	}
	sort.Strings(top)
	return top
}

// RunDebtCheck publishes a reminder for every user with a negative balance.
// Deliberately unguarded: a debtor is reminded on every run until the debt
// is cleared.
func (j *Jobs) RunDebtCheck() (int, error) {
	users, err := j.repository.GetAllUsers()
	if err != nil {
		return 0, NewJobError("debt_check", err)
	}

	var reminded int
	for _, u := range users {
		if !u.InDebt() {
			continue
		}
		j.eventBus.Publish(events.TopicDebtReminderDue, events.DebtReminderDue{
			Event:      events.NewEvent(),
			TelegramID: u.TelegramID,
			Balance:    u.Balance,
		})
		reminded++
	}

	j.logger.Info("Debt check completed", zap.Int("debtors", reminded))
	return reminded, nil
}

// RunLowBalanceCheck notices users whose balance dropped under the
// threshold but is not yet negative, at most once per calendar day: the
// stamp is written before the event so a crashed send is never repeated
// the same day.
func (j *Jobs) RunLowBalanceCheck() (int, error) {
	day := j.today()

	users, err := j.repository.GetAllUsers()
	if err != nil {
		return 0, NewJobError("low_balance_check", err)
	}

	var noticed int
	for _, u := range users {
		if u.Balance < 0 || u.Balance >= j.lowBalanceThreshold {
			continue
		}
		if u.LastBalanceNotice == day {
			continue
		}

		if err := j.service.MarkBalanceNoticed(u.TelegramID, day); err != nil {
			j.logger.Error("Failed to stamp low-balance notice",
				zap.Int64("telegramID", u.TelegramID),
				zap.Error(err))
			continue
		}

		j.eventBus.Publish(events.TopicLowBalanceNoticeDue, events.LowBalanceNoticeDue{
			Event:      events.NewEvent(),
			TelegramID: u.TelegramID,
			Balance:    u.Balance,
		})
		noticed++
	}

	j.logger.Info("Low balance check completed", zap.Int("noticed", noticed))
	return noticed, nil
}

// RunNightlyCleanup deletes food choices, in both namespaces, dated
// strictly before the current calendar day. Attendance history and the
// transaction log are untouched.
func (j *Jobs) RunNightlyCleanup() (int, error) {
	day := j.today()

	deleted, err := j.repository.DeleteChoicesBefore(day)
	if err != nil {
		return 0, NewJobError("nightly_cleanup", err)
	}

	j.logger.Info("Nightly cleanup completed",
		zap.String("before", day.String()),
		zap.Int64("deleted", deleted))
	return int(deleted), nil
}

// RunSheetSync pulls the authoritative sheet into the user store. A no-op
// when the reconciler is not configured.
func (j *Jobs) RunSheetSync() (int, error) {
	if j.reconciler == nil {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := j.reconciler.Sync(ctx)
	if err != nil {
		return 0, NewJobError("sheet_sync", err)
	}
	return result.Updated, nil
}
