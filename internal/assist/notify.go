package assist

// Level classifies a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// Notification is a transient user-facing message (the toast
// equivalent): errors that must reach the user without corrupting
// committed chat state, plus informational signals like "Listening...".
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Notifier receives notifications. The presentation layer provides
// the real implementation; Notify must not block.
type Notifier interface {
	Notify(n Notification)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(Notification) {}
