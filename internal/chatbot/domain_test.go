package chatbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallback(t *testing.T) {
	tests := []struct {
		name string
		data string
		want CallbackAction
	}{
		{"attend yes", "att_yes", CallbackAction{Kind: ActionAttendYes}},
		{"attend no", "att_no", CallbackAction{Kind: ActionAttendNo}},
		{"test attend yes", "test_att_yes", CallbackAction{Kind: ActionAttendYes, Test: true}},
		{"test attend no", "test_att_no", CallbackAction{Kind: ActionAttendNo, Test: true}},
		{"dish", "food:Osh", CallbackAction{Kind: ActionPickDish, Dish: "Osh"}},
		{"test dish", "test_food:Qovurma Lag'mon", CallbackAction{Kind: ActionPickDish, Dish: "Qovurma Lag'mon", Test: true}},
		{"cancel lunch", "cancel_lunch", CallbackAction{Kind: ActionCancelLunch}},
		{"back out of picking", "cancel_attendance", CallbackAction{Kind: ActionCancelPicking}},
		{"notify confirm", "notify_confirm", CallbackAction{Kind: ActionNotifyConfirm}},
		{"notify cancel", "notify_cancel", CallbackAction{Kind: ActionNotifyCancel}},
		{"garbage", "whatever", CallbackAction{Kind: ActionUnknown}},
		{"empty", "", CallbackAction{Kind: ActionUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCallback(tt.data))
		})
	}
}

func TestParseCommandArgs(t *testing.T) {
	t.Run("id with trailing fields", func(t *testing.T) {
		id, rest, err := ParseCommandArgs("42 5000 top up")
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		assert.Equal(t, []string{"5000", "top", "up"}, rest)
	})

	t.Run("id only", func(t *testing.T) {
		id, rest, err := ParseCommandArgs("  42  ")
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		assert.Empty(t, rest)
	})

	t.Run("empty payload", func(t *testing.T) {
		_, _, err := ParseCommandArgs("")
		assert.ErrorIs(t, err, ErrMissingArgument)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		_, _, err := ParseCommandArgs("aziz 5000")
		assert.ErrorIs(t, err, ErrBadArgument)
	})
}

func TestConversationStore(t *testing.T) {
	store := newConversationStore()

	t.Run("unknown chat is idle", func(t *testing.T) {
		conv := store.Get(7)
		assert.Equal(t, stateIdle, conv.state)
		assert.Empty(t, conv.data)
	})

	t.Run("set then get", func(t *testing.T) {
		store.Set(7, stateRegisterPhone, map[string]string{"name": "Aziza"})
		conv := store.Get(7)
		assert.Equal(t, stateRegisterPhone, conv.state)
		assert.Equal(t, "Aziza", conv.data["name"])
	})

	t.Run("get returns a copy", func(t *testing.T) {
		conv := store.Get(7)
		conv.data["name"] = "mutated"
		assert.Equal(t, "Aziza", store.Get(7).data["name"])
	})

	t.Run("clear returns to idle", func(t *testing.T) {
		store.Clear(7)
		assert.Equal(t, stateIdle, store.Get(7).state)
	})

	t.Run("chats are independent", func(t *testing.T) {
		store.Set(1, stateNotifyMessage, nil)
		store.Set(2, stateChangeName, nil)
		assert.Equal(t, stateNotifyMessage, store.Get(1).state)
		assert.Equal(t, stateChangeName, store.Get(2).state)
	})
}
