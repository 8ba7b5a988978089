package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"lunchbot-api/internal/common"
	"lunchbot-api/internal/config"
	"lunchbot-api/internal/events"
	"lunchbot-api/internal/ledger"
	"lunchbot-api/internal/menu"
	"lunchbot-api/internal/sheets"
)

// ChatbotService drives the Telegram side: long-poll command and callback
// handling plus the notification fan-out for events published by the ledger
// and the scheduled jobs.
type ChatbotService interface {
	// Start subscribes to events and begins consuming updates.
	Start() error
	// Stop closes the update stream and waits for the handler loop.
	Stop()
	// Broadcast sends text to every listed user, returning the delivered
	// count and the users it could not reach.
	Broadcast(text string, userIDs []int64) (int, []string)
}

type chatbotService struct {
	provider      Provider
	ledger        ledger.Service
	reconciler    *sheets.Reconciler
	eventBus      events.EventBus
	logger        *zap.Logger
	keyboards     *KeyboardBuilder
	conversations *conversationStore
	clock         common.Clock
	location      *time.Location
	cutoffHour    int
	config        config.ChatbotConfig

	wg      sync.WaitGroup
	started bool
}

// NewChatbotService wires the bot. reconciler may be nil when sheet sync is
// disabled.
func NewChatbotService(provider Provider, ledgerService ledger.Service, reconciler *sheets.Reconciler,
	eventBus events.EventBus, logger *zap.Logger, cfg config.ChatbotConfig,
	location *time.Location, cutoffHour int, clock common.Clock) ChatbotService {
	return &chatbotService{
		provider:      provider,
		ledger:        ledgerService,
		reconciler:    reconciler,
		eventBus:      eventBus,
		logger:        logger,
		keyboards:     NewKeyboardBuilder(),
		conversations: newConversationStore(),
		clock:         clock,
		location:      location,
		cutoffHour:    cutoffHour,
		config:        cfg,
	}
}

// Start subscribes to notification events and begins the update loop.
func (s *chatbotService) Start() error {
	if s.started {
		return fmt.Errorf("chatbot service already started")
	}
	s.started = true

	s.setupEventSubscriptions()

	updates := s.provider.UpdatesChannel(s.config.PollTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for update := range updates {
			s.handleUpdate(update)
		}
	}()

	s.logger.Info("Chatbot service started", zap.Int("pollTimeout", s.config.PollTimeout))
	return nil
}

// Stop closes the update stream and waits for the handler loop to drain.
func (s *chatbotService) Stop() {
	s.provider.StopReceivingUpdates()
	s.wg.Wait()
	s.logger.Info("Chatbot service stopped")
}

// setupEventSubscriptions registers the notification fan-out handlers.
// Async subscriptions keep publishers (the ledger, the jobs) unblocked.
func (s *chatbotService) setupEventSubscriptions() {
	subscriptions := map[string]interface{}{
		events.TopicMorningPromptDue:    s.handleMorningPromptDue,
		events.TopicDailySummaryReady:   s.handleDailySummaryReady,
		events.TopicDebtReminderDue:     s.handleDebtReminderDue,
		events.TopicLowBalanceNoticeDue: s.handleLowBalanceNoticeDue,
		events.TopicDayCancelled:        s.handleDayCancelled,
	}

	for topic, handler := range subscriptions {
		if err := s.eventBus.SubscribeAsync(topic, handler); err != nil {
			s.logger.Error("Failed to subscribe to topic",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}
}

func (s *chatbotService) now() time.Time {
	return s.clock.Now().In(s.location)
}

func (s *chatbotService) today() common.Day {
	return common.DayOf(s.now())
}

// cancellable reports whether a same-day cancel button still makes sense.
func (s *chatbotService) cancellable() bool {
	return s.now().Hour() < s.cutoffHour
}

// handleUpdate dispatches one long-poll update. Panics are contained so a
// malformed update never kills the loop.
func (s *chatbotService) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Update handler panic recovered", zap.Any("panic", r))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		s.handleCallback(update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		s.handleCommand(update.Message)
	case update.Message != nil:
		s.handleConversationText(update.Message)
	}
}

// Commands

func (s *chatbotService) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	command := msg.Command()
	args := msg.CommandArguments()

	s.logger.Debug("Handling command",
		zap.Int64("chatID", chatID),
		zap.String("command", command))

	switch command {
	case CmdStart:
		s.cmdStart(chatID)
	case CmdHelp:
		user, _ := s.ledger.GetUser(chatID)
		s.reply(chatID, msgHelp(user != nil && user.IsAdmin))
	case CmdPing:
		s.reply(chatID, "pong")
	case CmdCancel:
		s.conversations.Clear(chatID)
		s.reply(chatID, msgOperationCancelled())
	case CmdBalance:
		s.withUser(chatID, func(u *ledger.User) {
			s.reply(chatID, msgBalance(u.Balance))
		})
	case CmdAttendance:
		s.withUser(chatID, func(u *ledger.User) {
			s.reply(chatID, msgAttendanceHistory(u.Attendance))
		})
	case CmdHistory:
		s.withUser(chatID, func(u *ledger.User) {
			txns, err := s.ledger.Transactions(u.TelegramID, 20)
			if err != nil {
				s.reply(chatID, msgInternalError())
				return
			}
			s.reply(chatID, msgTransactionHistory(txns))
		})
	case CmdMenu:
		s.withUser(chatID, func(u *ledger.User) {
			s.reopenDeclinedDay(u)
			s.sendDishSelection(chatID, false)
		})
	case CmdName:
		s.withUser(chatID, func(u *ledger.User) {
			s.conversations.Set(chatID, stateChangeName, nil)
			s.reply(chatID, msgAskName())
		})
	case CmdCancelLunch:
		s.withUser(chatID, func(u *ledger.User) {
			s.cancelToday(chatID, false, 0)
		})

	case CmdUsers:
		s.withAdmin(chatID, func(*ledger.User) { s.cmdUsers(chatID) })
	case CmdAdjust:
		s.withAdmin(chatID, func(*ledger.User) { s.cmdAdjust(chatID, args) })
	case CmdSetPrice:
		s.withAdmin(chatID, func(*ledger.User) { s.cmdSetPrice(chatID, args) })
	case CmdPromote:
		s.withAdmin(chatID, func(*ledger.User) { s.cmdSetAdmin(chatID, args, true) })
	case CmdDemote:
		s.withAdmin(chatID, func(*ledger.User) { s.cmdSetAdmin(chatID, args, false) })
	case CmdRemove:
		s.withAdmin(chatID, func(*ledger.User) { s.cmdRemove(chatID, args) })
	case CmdCancelDay:
		s.withAdmin(chatID, func(*ledger.User) {
			s.conversations.Set(chatID, stateCancelDayDate, nil)
			s.reply(chatID, msgAskCancelDate())
		})
	case CmdNotify:
		s.withAdmin(chatID, func(*ledger.User) {
			s.conversations.Set(chatID, stateNotifyMessage, nil)
			s.reply(chatID, msgAskNotifyText())
		})
	case CmdTestSurvey:
		s.withAdmin(chatID, func(*ledger.User) { s.cmdTestSurvey(chatID) })
	case CmdSync:
		s.withAdmin(chatID, func(*ledger.User) { s.cmdSync(chatID) })
	}
}

// withUser runs fn for a registered caller, or points at /start.
func (s *chatbotService) withUser(chatID int64, fn func(*ledger.User)) {
	user, err := s.ledger.GetUser(chatID)
	if err != nil {
		s.reply(chatID, msgNotRegistered())
		return
	}
	fn(user)
}

// withAdmin runs fn for an admin caller only.
func (s *chatbotService) withAdmin(chatID int64, fn func(*ledger.User)) {
	user, err := s.ledger.GetUser(chatID)
	if err != nil || !user.IsAdmin {
		s.reply(chatID, msgAdminOnly())
		return
	}
	fn(user)
}

func (s *chatbotService) cmdStart(chatID int64) {
	user, err := s.ledger.GetUser(chatID)
	if err == nil {
		s.reply(chatID, msgWelcomeBack(user.Name))
		return
	}

	s.conversations.Set(chatID, stateRegisterName, nil)
	s.reply(chatID, msgAskName())
}

func (s *chatbotService) cmdUsers(chatID int64) {
	users, err := s.ledger.ListUsers()
	if err != nil {
		s.reply(chatID, msgInternalError())
		return
	}
	s.reply(chatID, msgUsersList(users))
}

func (s *chatbotService) cmdAdjust(chatID int64, args string) {
	id, rest, err := ParseCommandArgs(args)
	if err != nil || len(rest) == 0 {
		s.reply(chatID, "Foydalanish: /adjust <id> <summa> [izoh]")
		return
	}
	amount, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil || amount == 0 {
		s.reply(chatID, "❌ Raqam kiriting!")
		return
	}

	description := strings.Join(rest[1:], " ")
	user, err := s.ledger.AdjustBalance(id, amount, description)
	if err != nil {
		s.replyError(chatID, err)
		return
	}
	s.reply(chatID, msgBalanceAdjusted(user.Name, amount, user.Balance))
}

func (s *chatbotService) cmdSetPrice(chatID int64, args string) {
	id, rest, err := ParseCommandArgs(args)
	if err != nil || len(rest) == 0 {
		s.reply(chatID, "Foydalanish: /setprice <id> <narx>")
		return
	}
	price, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		s.reply(chatID, "❌ Raqam kiriting!")
		return
	}

	user, err := s.ledger.SetDailyPrice(id, price)
	if err != nil {
		s.replyError(chatID, err)
		return
	}
	s.reply(chatID, msgPriceSet(user.Name, price))
}

func (s *chatbotService) cmdSetAdmin(chatID int64, args string, admin bool) {
	id, _, err := ParseCommandArgs(args)
	if err != nil {
		s.reply(chatID, "Foydalanish: /promote <id>")
		return
	}

	user, err := s.ledger.SetAdmin(id, admin)
	if err != nil {
		s.replyError(chatID, err)
		return
	}
	if admin {
		s.reply(chatID, msgPromoted(user.Name))
	} else {
		s.reply(chatID, msgDemoted(user.Name))
	}
}

func (s *chatbotService) cmdRemove(chatID int64, args string) {
	id, _, err := ParseCommandArgs(args)
	if err != nil {
		s.reply(chatID, "Foydalanish: /remove <id>")
		return
	}

	if err := s.ledger.RemoveUser(id); err != nil {
		s.replyError(chatID, err)
		return
	}
	s.reply(chatID, msgUserRemoved())
}

// cmdTestSurvey sends the attendance prompt in the dry-run namespace to
// every user; answers land in test food choices and never touch balances.
func (s *chatbotService) cmdTestSurvey(chatID int64) {
	users, err := s.ledger.ListUsers()
	if err != nil {
		s.reply(chatID, msgInternalError())
		return
	}

	keyboard := s.keyboards.BuildAttendancePrompt(true)
	var sent int
	var failed []string
	for _, u := range users {
		if err := s.provider.SendMessageWithKeyboard(u.TelegramID, msgAttendancePrompt(true), keyboard); err != nil {
			failed = append(failed, fmt.Sprintf("%s (%d)", u.Name, u.TelegramID))
			continue
		}
		sent++
	}
	s.reply(chatID, msgBroadcastResult(sent, failed))
}

func (s *chatbotService) cmdSync(chatID int64) {
	if s.reconciler == nil {
		s.reply(chatID, "Jadval sinxronizatsiyasi o'chirilgan.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := s.reconciler.Sync(ctx)
	if err != nil {
		s.logger.Error("Manual sheet sync failed", zap.Error(err))
		s.reply(chatID, msgInternalError())
		return
	}
	s.reply(chatID, msgSyncResult(result.Updated, result.Skipped, result.Failed))
}

// Conversations

func (s *chatbotService) handleConversationText(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	conv := s.conversations.Get(chatID)

	switch conv.state {
	case stateRegisterName, stateChangeName:
		if len([]rune(text)) < 2 || len([]rune(text)) > 50 {
			s.reply(chatID, msgBadName())
			return
		}
		if conv.state == stateChangeName {
			user, err := s.ledger.ChangeName(chatID, text)
			if err != nil {
				s.replyError(chatID, err)
				return
			}
			s.conversations.Clear(chatID)
			s.reply(chatID, msgNameChanged(user.Name))
			return
		}
		s.conversations.Set(chatID, stateRegisterPhone, map[string]string{"name": text})
		s.reply(chatID, msgAskPhone())

	case stateRegisterPhone:
		phone := text
		if msg.Contact != nil {
			phone = msg.Contact.PhoneNumber
		}
		user, _, err := s.ledger.Register(ledger.RegisterInput{
			TelegramID: chatID,
			Name:       conv.data["name"],
			Phone:      phone,
		})
		if err != nil {
			s.reply(chatID, msgBadPhone())
			return
		}
		s.conversations.Clear(chatID)
		s.reply(chatID, msgRegistered(user.Balance))

	case stateCancelDayDate:
		day, ok := s.parseCancelDate(text)
		if !ok {
			s.reply(chatID, msgBadDate())
			return
		}
		s.conversations.Set(chatID, stateCancelDayReason, map[string]string{"date": day.String()})
		s.reply(chatID, msgAskCancelReason())

	case stateCancelDayReason:
		day := common.Day(conv.data["date"])
		cancellation, err := s.ledger.CancelDay(day, text, chatID)
		s.conversations.Clear(chatID)
		if err != nil {
			s.replyError(chatID, err)
			return
		}
		s.reply(chatID, msgDayCancelledAdmin(day, cancellation.Affected()))

	case stateNotifyMessage:
		s.conversations.Set(chatID, stateNotifyConfirm, map[string]string{"message": text})
		s.sendWithKeyboard(chatID, msgConfirmNotify(text), s.keyboards.BuildNotifyConfirmation())
	}
}

func (s *chatbotService) parseCancelDate(text string) (common.Day, bool) {
	if strings.EqualFold(text, "bugun") {
		return s.today(), true
	}
	day, err := common.ParseDay(text)
	if err != nil {
		return "", false
	}
	return day, true
}

// Callbacks

func (s *chatbotService) handleCallback(cb *tgbotapi.CallbackQuery) {
	if err := s.provider.AnswerCallback(cb.ID); err != nil {
		s.logger.Debug("Failed to answer callback", zap.Error(err))
	}

	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	action := ParseCallback(cb.Data)

	s.logger.Debug("Handling callback",
		zap.Int64("chatID", chatID),
		zap.String("kind", action.Kind),
		zap.Bool("test", action.Test))

	switch action.Kind {
	case ActionAttendYes:
		s.handleAttendYes(chatID, messageID, action.Test)
	case ActionAttendNo:
		s.handleAttendNo(chatID, messageID, action.Test)
	case ActionPickDish:
		s.handlePickDish(chatID, messageID, action.Dish, action.Test)
	case ActionCancelLunch:
		s.cancelToday(chatID, true, messageID)
	case ActionCancelPicking:
		s.edit(chatID, messageID, msgPickingCancelled())
	case ActionNotifyConfirm:
		s.handleNotifyConfirm(chatID, messageID)
	case ActionNotifyCancel:
		s.conversations.Clear(chatID)
		s.edit(chatID, messageID, msgNotifyCancelled())
	default:
		s.logger.Warn("Unknown callback data", zap.String("data", cb.Data))
	}
}

// sendDishSelection offers today's dish set for the /menu command.
// reopenDeclinedDay moves today back to unset for a user who declined and
// is now looking at the menu again.
func (s *chatbotService) reopenDeclinedDay(user *ledger.User) {
	today := s.today()
	if !user.HasDeclined(today) {
		return
	}
	if err := s.ledger.ClearDecline(user.TelegramID, today); err != nil {
		s.logger.Error("Failed to clear decline",
			zap.Int64("telegramID", user.TelegramID),
			zap.Error(err))
	}
}

func (s *chatbotService) sendDishSelection(chatID int64, test bool) {
	dishes := menu.ForDay(s.now())
	if dishes == nil {
		s.reply(chatID, msgNoMenuToday())
		return
	}
	keyboard := s.keyboards.BuildDishSelection(dishes, s.cancellable(), test)
	s.sendWithKeyboard(chatID, msgPickDish(test), keyboard)
}

func (s *chatbotService) handleAttendYes(chatID int64, messageID int, test bool) {
	user, err := s.ledger.GetUser(chatID)
	if err != nil {
		s.edit(chatID, messageID, msgNotRegistered())
		return
	}

	dishes := menu.ForDay(s.now())
	if dishes == nil {
		s.edit(chatID, messageID, msgNoMenuToday())
		return
	}

	// A test answer never blocks on a real confirmation; a live repeat
	// surfaces the recorded choice instead of charging again.
	if !test && user.HasConfirmed(s.today()) {
		s.edit(chatID, messageID, msgAlreadyConfirmed(s.recordedDish(chatID, false), user.Balance))
		return
	}
	if !test {
		s.reopenDeclinedDay(user)
	}

	// A fresh message carries the dish keyboard; edit-text alone cannot
	// attach inline buttons.
	keyboard := s.keyboards.BuildDishSelection(dishes, s.cancellable(), test)
	s.sendWithKeyboard(chatID, msgPickDish(test), keyboard)
}

func (s *chatbotService) handleAttendNo(chatID int64, messageID int, test bool) {
	user, err := s.ledger.GetUser(chatID)
	if err != nil {
		s.edit(chatID, messageID, msgNotRegistered())
		return
	}

	today := s.today()
	if test {
		// Test answers touch nothing in the live ledger.
		s.edit(chatID, messageID, "⚠️ TEST: "+msgDeclined())
		return
	}

	wasConfirmed := user.HasConfirmed(today)
	updated, err := s.ledger.Decline(chatID, today)
	if err != nil {
		s.replyLedgerEdit(chatID, messageID, err)
		return
	}

	if wasConfirmed {
		s.edit(chatID, messageID, msgCancelled(today, updated.Balance, false))
	} else {
		s.edit(chatID, messageID, msgDeclined())
	}
}

func (s *chatbotService) handlePickDish(chatID int64, messageID int, dish string, test bool) {
	if !menu.Contains(s.now(), dish) {
		s.edit(chatID, messageID, msgNoMenuToday())
		return
	}

	ns := ledger.NamespaceLive
	if test {
		ns = ledger.NamespaceTest
	}

	result, err := s.ledger.Confirm(chatID, s.today(), dish, ns)
	if err != nil {
		s.replyLedgerEdit(chatID, messageID, err)
		return
	}

	if result.AlreadyConfirmed && !test {
		s.edit(chatID, messageID, msgAlreadyConfirmed(s.recordedDish(chatID, false), result.User.Balance))
		return
	}
	s.edit(chatID, messageID, msgDishConfirmed(dish, result.User.Balance, test))
}

// cancelToday handles both the /cancel_lunch command and the inline button.
func (s *chatbotService) cancelToday(chatID int64, inline bool, messageID int) {
	user, err := s.ledger.Cancel(chatID, s.today())
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrCutoffPassed), errors.Is(err, ledger.ErrPastDay):
			s.respond(chatID, inline, messageID, msgCancelCutoffPassed())
		case errors.Is(err, ledger.ErrNotConfirmed):
			s.respond(chatID, inline, messageID, msgDeclined())
		default:
			s.respond(chatID, inline, messageID, msgInternalError())
		}
		return
	}
	s.respond(chatID, inline, messageID, msgCancelled(s.today(), user.Balance, false))
}

func (s *chatbotService) handleNotifyConfirm(chatID int64, messageID int) {
	conv := s.conversations.Get(chatID)
	message := conv.data["message"]
	s.conversations.Clear(chatID)

	if conv.state != stateNotifyConfirm || message == "" {
		s.edit(chatID, messageID, msgInternalError())
		return
	}

	users, err := s.ledger.ListUsers()
	if err != nil {
		s.edit(chatID, messageID, msgInternalError())
		return
	}

	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.TelegramID
	}

	sent, failed := s.Broadcast(message, ids)
	s.edit(chatID, messageID, msgBroadcastResult(sent, failed))
}

// recordedDish returns the dish stored for today, or empty when the user
// confirmed without picking one.
func (s *chatbotService) recordedDish(chatID int64, test bool) string {
	ns := ledger.NamespaceLive
	if test {
		ns = ledger.NamespaceTest
	}
	dish, err := s.ledger.Choice(chatID, s.today(), ns)
	if err != nil {
		s.logger.Debug("Failed to read recorded choice", zap.Int64("chatID", chatID), zap.Error(err))
		return ""
	}
	return dish
}

// Event handlers

func (s *chatbotService) handleMorningPromptDue(event events.MorningPromptDue) {
	keyboard := s.keyboards.BuildAttendancePrompt(false)
	var sent, failed int
	for _, id := range event.UserIDs {
		if err := s.provider.SendMessageWithKeyboard(id, msgAttendancePrompt(false), keyboard); err != nil {
			failed++
			continue
		}
		sent++
	}
	s.logger.Info("Morning prompts sent",
		zap.String("day", event.Day.String()),
		zap.Int("sent", sent),
		zap.Int("failed", failed))
}

func (s *chatbotService) handleDailySummaryReady(event events.DailySummaryReady) {
	adminText := msgAdminSummary(event)
	var failed int
	for _, id := range event.AdminIDs {
		if err := s.provider.SendMessage(id, adminText); err != nil {
			failed++
		}
	}

	attendeeText := msgAttendeeSummary(event.TopDishes)
	for _, a := range event.Attendees {
		if err := s.provider.SendMessage(a.TelegramID, attendeeText); err != nil {
			failed++
		}
	}

	s.logger.Info("Daily summary sent",
		zap.String("day", event.Day.String()),
		zap.Int("admins", len(event.AdminIDs)),
		zap.Int("attendees", len(event.Attendees)),
		zap.Int("failed", failed))
}

func (s *chatbotService) handleDebtReminderDue(event events.DebtReminderDue) {
	if err := s.provider.SendMessage(event.TelegramID, msgDebtReminder(event.Balance)); err != nil {
		s.logger.Error("Failed to send debt reminder",
			zap.Int64("telegramID", event.TelegramID),
			zap.Error(err))
	}
}

func (s *chatbotService) handleLowBalanceNoticeDue(event events.LowBalanceNoticeDue) {
	if err := s.provider.SendMessage(event.TelegramID, msgLowBalance(event.Balance)); err != nil {
		s.logger.Error("Failed to send low balance notice",
			zap.Int64("telegramID", event.TelegramID),
			zap.Error(err))
	}
}

// handleDayCancelled notifies every user; refunded users see the amount
// returned to them.
func (s *chatbotService) handleDayCancelled(event events.DayCancelled) {
	refundByUser := make(map[int64]int64, len(event.Refunds))
	for _, r := range event.Refunds {
		refundByUser[r.TelegramID] = r.Amount
	}

	var sent, failed int
	for _, id := range event.UserIDs {
		text := msgDayCancelledUser(event.Day, event.Reason, refundByUser[id])
		if err := s.provider.SendMessage(id, text); err != nil {
			failed++
			continue
		}
		sent++
	}
	s.logger.Info("Day cancellation notices sent",
		zap.String("day", event.Day.String()),
		zap.Int("sent", sent),
		zap.Int("failed", failed))
}

// Broadcast sends text to every listed user with per-user failure
// tolerance. The returned slice names the unreachable users.
func (s *chatbotService) Broadcast(text string, userIDs []int64) (int, []string) {
	var sent int
	var failed []string
	for _, id := range userIDs {
		if err := s.provider.SendMessage(id, text); err != nil {
			s.logger.Warn("Broadcast delivery failed",
				zap.Int64("telegramID", id),
				zap.Error(err))
			failed = append(failed, strconv.FormatInt(id, 10))
			continue
		}
		sent++
	}

	s.logger.Info("Broadcast completed",
		zap.Int("sent", sent),
		zap.Int("failed", len(failed)))
	return sent, failed
}

// Send helpers

func (s *chatbotService) reply(chatID int64, text string) {
	if err := s.provider.SendMessage(chatID, text); err != nil {
		s.logger.Error("Failed to send reply", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (s *chatbotService) sendWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	if err := s.provider.SendMessageWithKeyboard(chatID, text, kb); err != nil {
		s.logger.Error("Failed to send keyboard", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (s *chatbotService) edit(chatID int64, messageID int, text string) {
	if err := s.provider.EditMessage(chatID, messageID, text); err != nil {
		// Fall back to a fresh message; edits fail on aged messages.
		s.reply(chatID, text)
	}
}

func (s *chatbotService) respond(chatID int64, inline bool, messageID int, text string) {
	if inline {
		s.edit(chatID, messageID, text)
		return
	}
	s.reply(chatID, text)
}

// replyError maps a ledger failure to the right user message.
func (s *chatbotService) replyError(chatID int64, err error) {
	if ledger.IsUserVisible(err) {
		s.reply(chatID, userVisibleText(err))
		return
	}
	s.logger.Error("Operation failed", zap.Int64("chatID", chatID), zap.Error(err))
	s.reply(chatID, msgInternalError())
}

func (s *chatbotService) replyLedgerEdit(chatID int64, messageID int, err error) {
	if ledger.IsUserVisible(err) {
		s.edit(chatID, messageID, userVisibleText(err))
		return
	}
	s.logger.Error("Operation failed", zap.Int64("chatID", chatID), zap.Error(err))
	s.edit(chatID, messageID, msgInternalError())
}

func userVisibleText(err error) string {
	switch {
	case errors.Is(err, ledger.ErrCutoffPassed), errors.Is(err, ledger.ErrPastDay):
		return msgCancelCutoffPassed()
	case errors.Is(err, ledger.ErrNotConfirmed):
		return msgDeclined()
	default:
		var notFound common.NotFoundError
		if errors.As(err, &notFound) {
			return msgNotRegistered()
		}
		return msgInternalError()
	}
}
