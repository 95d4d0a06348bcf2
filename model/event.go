package model

import "time"

// Event is a runtime notification emitted by the execution core for the UI
// event sink to render — a schedule tick, a service crash, a hotkey
// registration failure, and so on. Adapted from the teacher's incident
// Event record: same timestamped, component-tagged shape, applied to
// execution-core occurrences instead of system-performance incidents.
type Event struct {
	Topic     string    `json:"topic"`
	Time      time.Time `json:"time"`
	Component string    `json:"component"`
	Name      string    `json:"name,omitempty"` // script/service/schedule/hotkey identifier, if applicable
	Message   string    `json:"message,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// Well-known event topics emitted across the core.
const (
	TopicExecutionBlocked   = "execution_blocked"
	TopicScheduleError      = "schedule_error"
	TopicServiceCrashed     = "service_crashed"
	TopicServiceRestarted   = "service_restarted"
	TopicRestartLimitReached = "restart_limit_reached"
	TopicHotkeyAdded        = "hotkey_added"
	TopicHotkeyRemoved      = "hotkey_removed"
	TopicHotkeyUpdated      = "hotkey_updated"
	TopicRegistrationFailed = "registration_failed"
)
