package chatbot

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"lunchbot-api/internal/common"
	"lunchbot-api/internal/config"
	"lunchbot-api/internal/events"
	"lunchbot-api/internal/ledger"
)

// fakeProvider records outgoing traffic instead of hitting Telegram.
type sentMessage struct {
	ChatID   int64
	Text     string
	Keyboard *tgbotapi.InlineKeyboardMarkup
}

type fakeProvider struct {
	mu      sync.Mutex
	sent    []sentMessage
	edits   []sentMessage
	failFor map[int64]error
	updates chan tgbotapi.Update
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		failFor: make(map[int64]error),
		updates: make(chan tgbotapi.Update, 16),
	}
}

func (p *fakeProvider) SendMessage(chatID int64, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failFor[chatID]; ok {
		return err
	}
	p.sent = append(p.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (p *fakeProvider) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failFor[chatID]; ok {
		return err
	}
	p.sent = append(p.sent, sentMessage{ChatID: chatID, Text: text, Keyboard: &keyboard})
	return nil
}

func (p *fakeProvider) EditMessage(chatID int64, messageID int, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.edits = append(p.edits, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (p *fakeProvider) AnswerCallback(string) error { return nil }

func (p *fakeProvider) UpdatesChannel(int) tgbotapi.UpdatesChannel { return p.updates }

func (p *fakeProvider) StopReceivingUpdates() { close(p.updates) }

func (p *fakeProvider) GetMe() (*tgbotapi.User, error) {
	return &tgbotapi.User{UserName: "lunchbot_test"}, nil
}

func (p *fakeProvider) sentTo(chatID int64) []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []sentMessage
	for _, m := range p.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (p *fakeProvider) lastSent(t *testing.T, chatID int64) sentMessage {
	t.Helper()
	msgs := p.sentTo(chatID)
	require.NotEmpty(t, msgs, "no messages sent to chat %d", chatID)
	return msgs[len(msgs)-1]
}

func (p *fakeProvider) lastEdit(t *testing.T, chatID int64) sentMessage {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.edits) - 1; i >= 0; i-- {
		if p.edits[i].ChatID == chatID {
			return p.edits[i]
		}
	}
	t.Fatalf("no edits sent to chat %d", chatID)
	return sentMessage{}
}

// Fixture

type botFixture struct {
	provider *fakeProvider
	repo     *ledger.MockLedgerRepository
	clock    *common.MockClock
	ledger   ledger.Service
	bot      *chatbotService
	loc      *time.Location
}

// newBotFixture pins the clock to a Monday morning in Tashkent, before the
// cancellation cutoff.
func newBotFixture(t *testing.T) *botFixture {
	t.Helper()

	loc, err := time.LoadLocation("Asia/Tashkent")
	require.NoError(t, err)

	clock := common.NewMockClock(time.Date(2024, 3, 4, 8, 0, 0, 0, loc))
	logger := zaptest.NewLogger(t)
	bus := events.NewEventBus(logger)
	repo := ledger.NewMockLedgerRepository()

	ledgerCfg := config.LedgerConfig{
		DefaultDailyPrice:   25000,
		DefaultBalance:      0,
		CancelCutoffHour:    10,
		LowBalanceThreshold: 50000,
	}
	svc := ledger.NewService(repo, bus, logger, ledgerCfg, loc, clock)

	provider := newFakeProvider()
	bot := NewChatbotService(provider, svc, nil, bus, logger,
		config.ChatbotConfig{Token: "test-token", PollTimeout: 30}, loc, 10, clock)

	return &botFixture{
		provider: provider,
		repo:     repo,
		clock:    clock,
		ledger:   svc,
		bot:      bot.(*chatbotService),
		loc:      loc,
	}
}

func (f *botFixture) seedUser(t *testing.T, id int64, name string, balance int64, admin bool) *ledger.User {
	t.Helper()
	user := ledger.NewUser(id, name, "+998901234567", ledger.Defaults{Balance: balance, DailyPrice: 25000})
	user.IsAdmin = admin
	f.repo.SeedUser(user)
	return user
}

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	length := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		length = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: length},
		},
	}}
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
	}}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 10,
			Chat:      &tgbotapi.Chat{ID: chatID},
		},
	}}
}

// Registration

func TestRegistrationFlow(t *testing.T) {
	f := newBotFixture(t)

	f.bot.handleUpdate(commandUpdate(100, "/start"))
	assert.Equal(t, msgAskName(), f.provider.lastSent(t, 100).Text)

	f.bot.handleUpdate(textUpdate(100, "Aziza Karimova"))
	assert.Equal(t, msgAskPhone(), f.provider.lastSent(t, 100).Text)

	f.bot.handleUpdate(textUpdate(100, "+998 90 123 45 67"))
	assert.Contains(t, f.provider.lastSent(t, 100).Text, "Ro'yxatdan o'tish yakunlandi")

	user, err := f.ledger.GetUser(100)
	require.NoError(t, err)
	assert.Equal(t, "Aziza Karimova", user.Name)
	assert.Equal(t, "+998901234567", user.Phone)
}

func TestRegistrationRejectsBadInput(t *testing.T) {
	f := newBotFixture(t)

	f.bot.handleUpdate(commandUpdate(100, "/start"))

	f.bot.handleUpdate(textUpdate(100, "A"))
	assert.Equal(t, msgBadName(), f.provider.lastSent(t, 100).Text)

	f.bot.handleUpdate(textUpdate(100, "Aziza"))
	assert.Equal(t, msgAskPhone(), f.provider.lastSent(t, 100).Text)

	f.bot.handleUpdate(textUpdate(100, "12345"))
	assert.Equal(t, msgBadPhone(), f.provider.lastSent(t, 100).Text)

	// The flow stays on the phone step and accepts a corrected number.
	f.bot.handleUpdate(textUpdate(100, "+998901234567"))
	_, err := f.ledger.GetUser(100)
	assert.NoError(t, err)
}

func TestStartForExistingUser(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 100, "Aziza", 50000, false)

	f.bot.handleUpdate(commandUpdate(100, "/start"))
	assert.Contains(t, f.provider.lastSent(t, 100).Text, "Aziza")
}

// User commands

func TestCommandsRequireRegistration(t *testing.T) {
	f := newBotFixture(t)

	for _, cmd := range []string{"/balance", "/menu", "/attendance", "/history", "/cancel_lunch"} {
		f.bot.handleUpdate(commandUpdate(200, cmd))
		assert.Equal(t, msgNotRegistered(), f.provider.lastSent(t, 200).Text, "command %s", cmd)
	}
}

func TestBalanceCommand(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 100, "Aziza", 47000, false)

	f.bot.handleUpdate(commandUpdate(100, "/balance"))
	assert.Contains(t, f.provider.lastSent(t, 100).Text, "47000")
}

func TestHelpShowsAdminSectionOnlyToAdmins(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 100, "Aziza", 0, false)
	f.seedUser(t, 200, "Bobur", 0, true)

	f.bot.handleUpdate(commandUpdate(100, "/help"))
	assert.NotContains(t, f.provider.lastSent(t, 100).Text, "/cancel_day")

	f.bot.handleUpdate(commandUpdate(200, "/help"))
	assert.Contains(t, f.provider.lastSent(t, 200).Text, "/cancel_day")
}

func TestChangeNameFlow(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 100, "Aziza", 0, false)

	f.bot.handleUpdate(commandUpdate(100, "/name"))
	assert.Equal(t, msgAskName(), f.provider.lastSent(t, 100).Text)

	f.bot.handleUpdate(textUpdate(100, "Aziza Karimova"))
	assert.Contains(t, f.provider.lastSent(t, 100).Text, "Aziza Karimova")

	user, err := f.ledger.GetUser(100)
	require.NoError(t, err)
	assert.Equal(t, "Aziza Karimova", user.Name)
}

// Attendance callbacks

func TestAttendanceFlow(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 100, "Aziza", 50000, false)

	// Yes answer offers the Monday dish set with a cancel row.
	f.bot.handleUpdate(callbackUpdate(100, "att_yes"))
	picker := f.provider.lastSent(t, 100)
	require.NotNil(t, picker.Keyboard)
	assert.Equal(t, msgPickDish(false), picker.Text)
	assert.Equal(t, "food:Qovurma Lag'mon", *picker.Keyboard.InlineKeyboard[0][0].CallbackData)

	// Picking a dish debits the daily price and records the choice.
	f.bot.handleUpdate(callbackUpdate(100, "food:Osh"))
	assert.Contains(t, f.provider.lastEdit(t, 100).Text, "Osh")

	user, err := f.ledger.GetUser(100)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), user.Balance)
	assert.True(t, user.HasConfirmed(common.Day("2024-03-04")))

	dish, err := f.ledger.Choice(100, common.Day("2024-03-04"), ledger.NamespaceLive)
	require.NoError(t, err)
	assert.Equal(t, "Osh", dish)
}

func TestRepeatConfirmSurfacesRecordedDish(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 100, "Aziza", 50000, false)

	f.bot.handleUpdate(callbackUpdate(100, "att_yes"))
	f.bot.handleUpdate(callbackUpdate(100, "food:Osh"))

	// A second yes press shows the stored choice and charges nothing.
	f.bot.handleUpdate(callbackUpdate(100, "att_yes"))
	edit := f.provider.lastEdit(t, 100)
	assert.Contains(t, edit.Text, "allaqachon")
	assert.Contains(t, edit.Text, "Osh")

	user, err := f.ledger.GetUser(100)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), user.Balance)
}

func TestDeclineCallback(t *testing.T) {
	t.Run("plain decline", func(t *testing.T) {
		f := newBotFixture(t)
		f.seedUser(t, 100, "Aziza", 50000, false)

		f.bot.handleUpdate(callbackUpdate(100, "att_no"))
		assert.Equal(t, msgDeclined(), f.provider.lastEdit(t, 100).Text)

		user, err := f.ledger.GetUser(100)
		require.NoError(t, err)
		assert.Equal(t, int64(50000), user.Balance)
		assert.True(t, user.HasDeclined(common.Day("2024-03-04")))
	})

	t.Run("declining a confirmed day refunds it", func(t *testing.T) {
		f := newBotFixture(t)
		f.seedUser(t, 100, "Aziza", 50000, false)

		f.bot.handleUpdate(callbackUpdate(100, "att_yes"))
		f.bot.handleUpdate(callbackUpdate(100, "food:Osh"))
		f.bot.handleUpdate(callbackUpdate(100, "att_no"))

		assert.Contains(t, f.provider.lastEdit(t, 100).Text, "bekor qilindi")

		user, err := f.ledger.GetUser(100)
		require.NoError(t, err)
		assert.Equal(t, int64(50000), user.Balance)
		assert.False(t, user.HasConfirmed(common.Day("2024-03-04")))
	})
}

func TestReopeningMenuClearsDecline(t *testing.T) {
	today := common.Day("2024-03-04")

	t.Run("via /menu", func(t *testing.T) {
		f := newBotFixture(t)
		f.seedUser(t, 100, "Aziza", 50000, false)

		f.bot.handleUpdate(callbackUpdate(100, "att_no"))
		f.bot.handleUpdate(commandUpdate(100, "/menu"))

		user, err := f.ledger.GetUser(100)
		require.NoError(t, err)
		assert.False(t, user.HasDeclined(today))
		assert.NotNil(t, f.provider.lastSent(t, 100).Keyboard)
	})

	t.Run("via a fresh yes answer", func(t *testing.T) {
		f := newBotFixture(t)
		f.seedUser(t, 100, "Aziza", 50000, false)

		f.bot.handleUpdate(callbackUpdate(100, "att_no"))
		f.bot.handleUpdate(callbackUpdate(100, "att_yes"))

		user, err := f.ledger.GetUser(100)
		require.NoError(t, err)
		assert.False(t, user.HasDeclined(today))

		// Picking a dish now lands a clean confirmation.
		f.bot.handleUpdate(callbackUpdate(100, "food:Osh"))
		user, err = f.ledger.GetUser(100)
		require.NoError(t, err)
		assert.True(t, user.HasConfirmed(today))
		assert.Equal(t, int64(25000), user.Balance)
	})
}

func TestCancelLunchCutoff(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 100, "Aziza", 50000, false)

	f.bot.handleUpdate(callbackUpdate(100, "att_yes"))
	f.bot.handleUpdate(callbackUpdate(100, "food:Osh"))

	f.clock.SetTime(time.Date(2024, 3, 4, 10, 0, 0, 0, f.loc))
	f.bot.handleUpdate(commandUpdate(100, "/cancel_lunch"))
	assert.Equal(t, msgCancelCutoffPassed(), f.provider.lastSent(t, 100).Text)

	// The debit stands.
	user, err := f.ledger.GetUser(100)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), user.Balance)
}

func TestWeekendHasNoMenu(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 100, "Aziza", 50000, false)

	f.clock.SetTime(time.Date(2024, 3, 9, 8, 0, 0, 0, f.loc)) // Saturday
	f.bot.handleUpdate(callbackUpdate(100, "att_yes"))
	assert.Equal(t, msgNoMenuToday(), f.provider.lastEdit(t, 100).Text)
}

func TestBackOutOfPicking(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 100, "Aziza", 50000, false)

	f.bot.handleUpdate(callbackUpdate(100, "att_yes"))
	f.bot.handleUpdate(callbackUpdate(100, "cancel_attendance"))
	assert.Equal(t, msgPickingCancelled(), f.provider.lastEdit(t, 100).Text)

	user, err := f.ledger.GetUser(100)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), user.Balance)
}

// Test survey dry run

func TestTestSurveyDryRun(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 1, "Admin", 0, true)
	f.seedUser(t, 100, "Aziza", 50000, false)

	f.bot.handleUpdate(commandUpdate(1, "/test_survey"))

	prompt := f.provider.lastSent(t, 100)
	require.NotNil(t, prompt.Keyboard)
	assert.Equal(t, "test_att_yes", *prompt.Keyboard.InlineKeyboard[0][0].CallbackData)

	// Answering through the test keyboard records a choice but never
	// touches attendance or the balance.
	f.bot.handleUpdate(callbackUpdate(100, "test_att_yes"))
	f.bot.handleUpdate(callbackUpdate(100, "test_food:Osh"))

	user, err := f.ledger.GetUser(100)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), user.Balance)
	assert.False(t, user.HasConfirmed(common.Day("2024-03-04")))

	dish, err := f.ledger.Choice(100, common.Day("2024-03-04"), ledger.NamespaceTest)
	require.NoError(t, err)
	assert.Equal(t, "Osh", dish)
}

// Admin commands

func TestAdminCommandsAreGated(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 100, "Aziza", 0, false)

	for _, cmd := range []string{"/users", "/adjust 1 5000", "/setprice 1 30000", "/promote 1", "/remove 1", "/cancel_day", "/notify", "/test_survey", "/sync"} {
		f.bot.handleUpdate(commandUpdate(100, cmd))
		assert.Equal(t, msgAdminOnly(), f.provider.lastSent(t, 100).Text, "command %s", cmd)
	}
}

func TestAdjustCommand(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 1, "Admin", 0, true)
	f.seedUser(t, 100, "Aziza", 10000, false)

	f.bot.handleUpdate(commandUpdate(1, "/adjust 100 50000 oylik to'lov"))
	assert.Contains(t, f.provider.lastSent(t, 1).Text, "60000")

	user, err := f.ledger.GetUser(100)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), user.Balance)
}

func TestAdjustCommandRejectsBadArgs(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 1, "Admin", 0, true)

	f.bot.handleUpdate(commandUpdate(1, "/adjust"))
	assert.Contains(t, f.provider.lastSent(t, 1).Text, "Foydalanish")

	f.bot.handleUpdate(commandUpdate(1, "/adjust 100 abc"))
	assert.Contains(t, f.provider.lastSent(t, 1).Text, "Raqam")
}

func TestPromoteAndDemote(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 1, "Admin", 0, true)
	f.seedUser(t, 100, "Aziza", 0, false)

	f.bot.handleUpdate(commandUpdate(1, "/promote 100"))
	user, err := f.ledger.GetUser(100)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	f.bot.handleUpdate(commandUpdate(1, "/demote 100"))
	user, err = f.ledger.GetUser(100)
	require.NoError(t, err)
	assert.False(t, user.IsAdmin)
}

func TestRemoveCommand(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 1, "Admin", 0, true)
	f.seedUser(t, 100, "Aziza", 0, false)

	f.bot.handleUpdate(commandUpdate(1, "/remove 100"))
	assert.Equal(t, msgUserRemoved(), f.provider.lastSent(t, 1).Text)

	_, err := f.ledger.GetUser(100)
	assert.Error(t, err)
}

func TestCancelDayFlow(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 1, "Admin", 0, true)
	f.seedUser(t, 100, "Aziza", 50000, false)
	f.seedUser(t, 200, "Bobur", 50000, false)

	// Bobur is confirmed, Aziza is not.
	_, err := f.ledger.Confirm(200, common.Day("2024-03-04"), "Osh", ledger.NamespaceLive)
	require.NoError(t, err)

	f.bot.handleUpdate(commandUpdate(1, "/cancel_day"))
	assert.Equal(t, msgAskCancelDate(), f.provider.lastSent(t, 1).Text)

	f.bot.handleUpdate(textUpdate(1, "bugun"))
	assert.Equal(t, msgAskCancelReason(), f.provider.lastSent(t, 1).Text)

	f.bot.handleUpdate(textUpdate(1, "Oshxona yopiq"))
	assert.Contains(t, f.provider.lastSent(t, 1).Text, "1 ta foydalanuvchi")

	// The confirmed user was made whole.
	user, err := f.ledger.GetUser(200)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), user.Balance)
}

func TestCancelDayRejectsBadDate(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 1, "Admin", 0, true)

	f.bot.handleUpdate(commandUpdate(1, "/cancel_day"))
	f.bot.handleUpdate(textUpdate(1, "ertaga"))
	assert.Equal(t, msgBadDate(), f.provider.lastSent(t, 1).Text)

	// The flow stays on the date step.
	f.bot.handleUpdate(textUpdate(1, "2024-03-05"))
	assert.Equal(t, msgAskCancelReason(), f.provider.lastSent(t, 1).Text)
}

// Broadcast

func TestNotifyFlow(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 1, "Admin", 0, true)
	f.seedUser(t, 100, "Aziza", 0, false)
	f.seedUser(t, 200, "Bobur", 0, false)
	f.provider.failFor[200] = errors.New("blocked the bot")

	f.bot.handleUpdate(commandUpdate(1, "/notify"))
	assert.Equal(t, msgAskNotifyText(), f.provider.lastSent(t, 1).Text)

	f.bot.handleUpdate(textUpdate(1, "Ertaga tushlik bo'lmaydi"))
	confirmation := f.provider.lastSent(t, 1)
	require.NotNil(t, confirmation.Keyboard)
	assert.Contains(t, confirmation.Text, "Ertaga tushlik bo'lmaydi")

	f.bot.handleUpdate(callbackUpdate(1, "notify_confirm"))
	result := f.provider.lastEdit(t, 1)
	assert.Contains(t, result.Text, "2 foydalanuvchiga yuborildi")
	assert.Contains(t, result.Text, "200")

	assert.Equal(t, "Ertaga tushlik bo'lmaydi", f.provider.lastSent(t, 100).Text)
}

func TestNotifyCancelled(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 1, "Admin", 0, true)
	f.seedUser(t, 100, "Aziza", 0, false)

	f.bot.handleUpdate(commandUpdate(1, "/notify"))
	f.bot.handleUpdate(textUpdate(1, "draft"))
	f.bot.handleUpdate(callbackUpdate(1, "notify_cancel"))

	assert.Equal(t, msgNotifyCancelled(), f.provider.lastEdit(t, 1).Text)
	assert.Empty(t, f.provider.sentTo(100))
}

func TestBroadcastCountsFailures(t *testing.T) {
	f := newBotFixture(t)
	f.provider.failFor[2] = errors.New("unreachable")

	sent, failed := f.bot.Broadcast("salom", []int64{1, 2, 3})
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"2"}, failed)
}

// Event fan-out

func TestMorningPromptFanOut(t *testing.T) {
	f := newBotFixture(t)
	f.provider.failFor[200] = errors.New("blocked")

	f.bot.handleMorningPromptDue(events.MorningPromptDue{
		Event:   events.NewEvent(),
		Day:     common.Day("2024-03-04"),
		UserIDs: []int64{100, 200, 300},
	})

	require.Len(t, f.provider.sentTo(100), 1)
	assert.NotNil(t, f.provider.sentTo(100)[0].Keyboard)
	assert.Equal(t, msgAttendancePrompt(false), f.provider.sentTo(100)[0].Text)
	assert.Len(t, f.provider.sentTo(300), 1)
	assert.Empty(t, f.provider.sentTo(200))
}

func TestDailySummaryFanOut(t *testing.T) {
	f := newBotFixture(t)

	f.bot.handleDailySummaryReady(events.DailySummaryReady{
		Event: events.NewEvent(),
		Day:   common.Day("2024-03-04"),
		Attendees: []events.AttendeeSummary{
			{TelegramID: 100, Name: "Aziza", Dish: "Osh"},
			{TelegramID: 200, Name: "Bobur", Dish: ""},
		},
		Counts:    []events.DishCount{{Dish: "Osh", Count: 1}},
		TopDishes: []string{"Osh"},
		Declined:  []string{"Kamola"},
		Pending:   []string{"Davron"},
		AdminIDs:  []int64{1},
	})

	adminText := f.provider.lastSent(t, 1).Text
	assert.Contains(t, adminText, "Aziza - Osh")
	assert.Contains(t, adminText, "Bobur - Tanlanmagan")
	assert.Contains(t, adminText, "Kamola")
	assert.Contains(t, adminText, "Davron")

	attendeeText := f.provider.lastSent(t, 100).Text
	assert.Contains(t, attendeeText, "Osh")
	assert.Equal(t, attendeeText, f.provider.lastSent(t, 200).Text)
}

func TestReminderFanOut(t *testing.T) {
	f := newBotFixture(t)

	f.bot.handleDebtReminderDue(events.DebtReminderDue{
		Event: events.NewEvent(), TelegramID: 100, Balance: -25000,
	})
	assert.Contains(t, f.provider.lastSent(t, 100).Text, "25000")

	f.bot.handleLowBalanceNoticeDue(events.LowBalanceNoticeDue{
		Event: events.NewEvent(), TelegramID: 200, Balance: 10000,
	})
	assert.Contains(t, f.provider.lastSent(t, 200).Text, "10000")
}

func TestDayCancelledFanOut(t *testing.T) {
	f := newBotFixture(t)

	f.bot.handleDayCancelled(events.DayCancelled{
		Event:   events.NewEvent(),
		Day:     common.Day("2024-03-04"),
		Reason:  "Oshxona yopiq",
		Refunds: []events.Refund{{TelegramID: 100, Amount: 25000}},
		UserIDs: []int64{100, 200},
	})

	refunded := f.provider.lastSent(t, 100).Text
	assert.Contains(t, refunded, "Oshxona yopiq")
	assert.Contains(t, refunded, "25000")

	plain := f.provider.lastSent(t, 200).Text
	assert.Contains(t, plain, "Oshxona yopiq")
	assert.NotContains(t, plain, "25000")
}

// Lifecycle

func TestStartAndStopDrainUpdates(t *testing.T) {
	f := newBotFixture(t)
	f.seedUser(t, 100, "Aziza", 47000, false)

	require.NoError(t, f.bot.Start())
	assert.Error(t, f.bot.Start())

	f.provider.updates <- commandUpdate(100, "/balance")
	f.bot.Stop()

	assert.Contains(t, f.provider.lastSent(t, 100).Text, "47000")
}

func TestMalformedUpdateDoesNotPanic(t *testing.T) {
	f := newBotFixture(t)

	assert.NotPanics(t, func() {
		f.bot.handleUpdate(tgbotapi.Update{})
		f.bot.handleUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "x", Data: "att_yes"}})
	})
}
