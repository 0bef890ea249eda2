package models

// ServiceState is the lifecycle state of the unlock listener service.
type ServiceState string

const (
	ServiceStopped  ServiceState = "stopped"
	ServiceStarting ServiceState = "starting"
	ServiceRunning  ServiceState = "running"
)

// Labels shown next to the file-select action.
const (
	SelectedFileNone    = "Selected file: none"
	SelectedFilePrefix  = "Selected file: "
	UnknownFileName     = "unknown file"
	StatusLabelRunning  = "Service running"
	StatusLabelStopped  = "Service stopped"
	StatusLabelStarting = "Service starting"
)

// Status is everything the settings UI renders. It is returned by
// GET /api/status and pushed over SSE whenever it changes.
type Status struct {
	Preferences   Preferences  `json:"preferences"`
	SelectedFile  string       `json:"selected_file"`
	Service       ServiceState `json:"service"`
	Running       bool         `json:"running"`
	StatusLabel   string       `json:"status_label"`
	UsageAccess   bool         `json:"usage_access"`
	Notifications bool         `json:"notifications"`
	// NeedsUsageGrant is true when desktop-only is enabled but usage access
	// has not been granted; the UI shows the grant action.
	NeedsUsageGrant bool `json:"needs_usage_grant"`
}

// LabelFor returns the status label for a service state.
func LabelFor(s ServiceState) string {
	switch s {
	case ServiceRunning:
		return StatusLabelRunning
	case ServiceStarting:
		return StatusLabelStarting
	}
	return StatusLabelStopped
}

// NoticeLevel classifies a transient notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is a transient message for the user, the daemon's equivalent of a
// toast. Permission problems are reported this way and never as errors.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Result pairs the new status with an optional notice. Controller
// operations that the UI triggers return one of these.
type Result struct {
	Status Status  `json:"status"`
	Notice *Notice `json:"notice,omitempty"`
}

// Event is what the event bus delivers to subscribers.
type Event struct {
	Status Status  `json:"status"`
	Notice *Notice `json:"notice,omitempty"`
}

// Info is the system information response.
type Info struct {
	Version  string `json:"version"`
	Hostname string `json:"hostname"`
}
