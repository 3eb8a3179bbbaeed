package chat

import "errors"

var (
	// ErrChatNotFound indicates the chat id is not in the collection.
	ErrChatNotFound = errors.New("chat not found")

	// ErrNoActiveChat indicates no chat is currently active.
	ErrNoActiveChat = errors.New("no active chat")
)
