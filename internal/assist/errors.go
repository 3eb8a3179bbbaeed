package assist

import "errors"

var (
	// ErrEmptyTurn indicates both the query and the attachment were absent.
	ErrEmptyTurn = errors.New("nothing to send")

	// ErrTurnInProgress indicates a turn is already running; concurrent
	// sends against the same handler are rejected rather than interleaved.
	ErrTurnInProgress = errors.New("a response is already being generated")

	// ErrNoPreviousTurn indicates regeneration was requested before any
	// turn completed.
	ErrNoPreviousTurn = errors.New("no previous turn to regenerate")

	// ErrNotAssistantMessage indicates feedback was aimed at a message
	// not sent by the assistant.
	ErrNotAssistantMessage = errors.New("feedback is only valid on assistant messages")

	// ErrVoiceUnavailable indicates no recorder backend is configured.
	ErrVoiceUnavailable = errors.New("voice input is not available")

	// ErrAlreadyRecording indicates voice capture is already active.
	ErrAlreadyRecording = errors.New("voice capture already in progress")

	// ErrNotRecording indicates there is no active voice capture to stop.
	ErrNotRecording = errors.New("no voice capture in progress")
)
