package chatbot

import (
	"errors"
	"fmt"
)

// Sentinel errors for command argument parsing.
var (
	ErrMissingArgument = errors.New("command requires an argument")
	ErrBadArgument     = errors.New("command argument is malformed")
	ErrNotAdmin        = errors.New("command is admin-only")
	ErrNotRegistered   = errors.New("user is not registered")
)

// SendError wraps a failed Telegram send with the target chat.
type SendError struct {
	ChatID int64
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to chat %d: %v", e.ChatID, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// NewSendError wraps err with the chat it targeted.
func NewSendError(chatID int64, err error) error {
	return &SendError{ChatID: chatID, Err: err}
}

// CommandError wraps a failed command execution.
type CommandError struct {
	Command string
	ChatID  int64
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command /%s in chat %d: %v", e.Command, e.ChatID, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError wraps err with the command that hit it.
func NewCommandError(command string, chatID int64, err error) error {
	return &CommandError{Command: command, ChatID: chatID, Err: err}
}
