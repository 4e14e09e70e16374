package roomview

import (
	"time"

	"github.com/vovakirdan/roomchat/internal/store"
)

// Severity classifies an alert.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Alert is a user-facing notification that dismisses itself after Duration.
type Alert struct {
	Title    string
	Text     string
	Severity Severity
	Duration time.Duration
}

// State is what the view renders.
type State struct {
	Room     string
	User     string
	Loading  bool
	Messages []store.Message
	Input    string
}

// View is the presentation side of a controller. Calls are made one at a
// time from the controller and must not call back into it synchronously
// while holding locks of their own.
type View interface {
	// Render shows state.
	Render(state State)
	// Rendered is the post-render hook fired after a snapshot was rendered,
	// used to keep the newest message in sight.
	Rendered()
	// Navigate leaves the room view for path.
	Navigate(path string)
	// Alert shows a notification.
	Alert(alert Alert)
}
