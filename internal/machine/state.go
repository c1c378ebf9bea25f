package machine

import "time"

// State is one node of the application state machine.
type State int

const (
	Boot State = iota
	WiFiConnecting
	WiFiConnected
	APIInitializing
	Idle
	TagDetected
	TagReading
	TagProcessing
	PlaybackSuccess
	PlaybackFailed
	ErrorRecovery
	WiFiReconnecting
)

var stateNames = [...]string{
	Boot:             "BOOT",
	WiFiConnecting:   "WIFI_CONNECTING",
	WiFiConnected:    "WIFI_CONNECTED",
	APIInitializing:  "API_INITIALIZING",
	Idle:             "IDLE",
	TagDetected:      "TAG_DETECTED",
	TagReading:       "TAG_READING",
	TagProcessing:    "TAG_PROCESSING",
	PlaybackSuccess:  "PLAYBACK_SUCCESS",
	PlaybackFailed:   "PLAYBACK_FAILED",
	ErrorRecovery:    "ERROR_RECOVERY",
	WiFiReconnecting: "WIFI_RECONNECTING",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Timing holds every interval and deadline the machine uses.
type Timing struct {
	Tick             time.Duration
	BootDelay        time.Duration
	ConnectTimeout   time.Duration
	ProbeInterval    time.Duration
	APIInitTimeout   time.Duration
	APIInitRetry     time.Duration
	Debounce         time.Duration
	Feedback         time.Duration
	NetCheckInterval time.Duration
	ReconnectTimeout time.Duration
	RecoveryCooldown time.Duration
}

// DefaultTiming returns the stock intervals.
func DefaultTiming() Timing {
	return Timing{
		Tick:             10 * time.Millisecond,
		BootDelay:        1500 * time.Millisecond,
		ConnectTimeout:   180 * time.Second,
		ProbeInterval:    time.Second,
		APIInitTimeout:   30 * time.Second,
		APIInitRetry:     2 * time.Second,
		Debounce:         500 * time.Millisecond,
		Feedback:         2 * time.Second,
		NetCheckInterval: 20 * time.Second,
		ReconnectTimeout: 30 * time.Second,
		RecoveryCooldown: 3 * time.Second,
	}
}
