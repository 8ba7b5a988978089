package chatbot

import (
	"strconv"
	"strings"
	"sync"
)

// Bot commands.
const (
	CmdStart       = "start"
	CmdHelp        = "help"
	CmdPing        = "ping"
	CmdBalance     = "balance"
	CmdMenu        = "menu"
	CmdAttendance  = "attendance"
	CmdHistory     = "history"
	CmdName        = "name"
	CmdCancelLunch = "cancel_lunch"
	CmdCancel      = "cancel"

	// Admin commands.
	CmdUsers      = "users"
	CmdAdjust     = "adjust"
	CmdSetPrice   = "setprice"
	CmdPromote    = "promote"
	CmdDemote     = "demote"
	CmdRemove     = "remove"
	CmdCancelDay  = "cancel_day"
	CmdNotify     = "notify"
	CmdTestSurvey = "test_survey"
	CmdSync       = "sync"
)

// Callback data values. Dish selection carries the dish after a colon; the
// test_ prefix routes the answer into the dry-run namespace.
const (
	CallbackAttendYes     = "att_yes"
	CallbackAttendNo      = "att_no"
	CallbackTestPrefix    = "test_"
	CallbackDishPrefix    = "food:"
	CallbackCancelLunch   = "cancel_lunch"
	CallbackCancelPicking = "cancel_attendance"
	CallbackNotifyConfirm = "notify_confirm"
	CallbackNotifyCancel  = "notify_cancel"
)

// CallbackAction is one parsed inline-button press.
type CallbackAction struct {
	Kind string
	Dish string
	Test bool
}

// Callback action kinds.
const (
	ActionAttendYes     = "attend_yes"
	ActionAttendNo      = "attend_no"
	ActionPickDish      = "pick_dish"
	ActionCancelLunch   = "cancel_lunch"
	ActionCancelPicking = "cancel_picking"
	ActionNotifyConfirm = "notify_confirm"
	ActionNotifyCancel  = "notify_cancel"
	ActionUnknown       = "unknown"
)

// ParseCallback decodes inline-button callback data.
func ParseCallback(data string) CallbackAction {
	test := strings.HasPrefix(data, CallbackTestPrefix)
	base := strings.TrimPrefix(data, CallbackTestPrefix)

	switch {
	case base == CallbackAttendYes:
		return CallbackAction{Kind: ActionAttendYes, Test: test}
	case base == CallbackAttendNo:
		return CallbackAction{Kind: ActionAttendNo, Test: test}
	case strings.HasPrefix(base, CallbackDishPrefix):
		return CallbackAction{Kind: ActionPickDish, Dish: strings.TrimPrefix(base, CallbackDishPrefix), Test: test}
	case base == CallbackCancelLunch:
		return CallbackAction{Kind: ActionCancelLunch, Test: test}
	case base == CallbackCancelPicking:
		return CallbackAction{Kind: ActionCancelPicking, Test: test}
	case base == CallbackNotifyConfirm:
		return CallbackAction{Kind: ActionNotifyConfirm}
	case base == CallbackNotifyCancel:
		return CallbackAction{Kind: ActionNotifyCancel}
	default:
		return CallbackAction{Kind: ActionUnknown}
	}
}

// ParseCommandArgs splits a command payload into a leading telegram ID and
// the remaining fields, used by argument-style admin commands like
// /adjust <id> <amount>.
func ParseCommandArgs(args string) (int64, []string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, nil, ErrMissingArgument
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, nil, ErrBadArgument
	}
	return id, fields[1:], nil
}

// Conversation states for the multi-step flows.
type conversationState int

const (
	stateIdle conversationState = iota
	stateRegisterName
	stateRegisterPhone
	stateChangeName
	stateCancelDayDate
	stateCancelDayReason
	stateNotifyMessage
	stateNotifyConfirm
)

// conversation is one user's in-flight multi-step flow. Data carries the
// answers collected so far (name, date, message draft).
type conversation struct {
	state conversationState
	data  map[string]string
}

// conversationStore tracks in-flight conversations per chat. State lives in
// memory only: a restart drops half-finished flows, which re-enter cleanly.
type conversationStore struct {
	mu    sync.Mutex
	convs map[int64]*conversation
}

func newConversationStore() *conversationStore {
	return &conversationStore{convs: make(map[int64]*conversation)}
}

// Get returns the current conversation for chatID, or an idle one.
func (s *conversationStore) Get(chatID int64) conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.convs[chatID]; ok {
		copied := conversation{state: c.state, data: make(map[string]string, len(c.data))}
		for k, v := range c.data {
			copied.data[k] = v
		}
		return copied
	}
	return conversation{state: stateIdle, data: map[string]string{}}
}

// Set replaces the conversation for chatID.
func (s *conversationStore) Set(chatID int64, state conversationState, data map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data == nil {
		data = make(map[string]string)
	}
	s.convs[chatID] = &conversation{state: state, data: data}
}

// Clear ends the conversation for chatID.
func (s *conversationStore) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, chatID)
}
