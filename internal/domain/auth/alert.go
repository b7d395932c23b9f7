package auth

// AlertSeverity classifies an Alert for the next page render.
type AlertSeverity string

const (
	AlertError   AlertSeverity = "error"
	AlertWarning AlertSeverity = "warning"
	AlertSuccess AlertSeverity = "success"
	AlertInfo    AlertSeverity = "info"
)

// Message keys understood by the frontend's translations.
const (
	MsgLoginFailed       = "error.loginFailed"
	MsgNoLogin           = "error.noLogin"
	MsgInvalidReturnPath = "error.invalidReturnPath"
)

// Alert is an ephemeral message attached to a redirect.
type Alert struct {
	Severity   AlertSeverity `json:"severity"`
	MessageKey string        `json:"message"`
	Args       []string      `json:"args,omitempty"`
}

// ErrorAlert builds an error-severity alert.
func ErrorAlert(key string, args ...string) *Alert {
	return &Alert{Severity: AlertError, MessageKey: key, Args: args}
}

// RedirectResult is what every login flow branch produces: where to send the
// browser next, and optionally what to tell the user when they get there.
type RedirectResult struct {
	URL   string
	Alert *Alert
}
