package services

import "sync"

// Level tells successes and failures apart.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a message shown to the user outside of a command's own
// output, for instance when a background upload ends.
type Notification struct {
	Level   Level
	Message string
}

// Notifier delivers notifications. It may be called from any goroutine.
type Notifier func(Notification)

// notifications guards the installed Notifier.
type notifications struct {
	mu sync.RWMutex
	fn Notifier
}

func (n *notifications) set(fn Notifier) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fn = fn
}

func (n *notifications) send(level Level, msg string) {
	n.mu.RLock()
	fn := n.fn
	n.mu.RUnlock()
	if fn != nil {
		fn(Notification{Level: level, Message: msg})
	}
}

// Confirmer asks the user a yes/no question.
type Confirmer func(question string) bool
