package styles

// Status icons
const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "⚠"
	IconInfo    = "ℹ"
	IconRunning = "▶"
	IconPending = "○"
	IconStopped = "■"
	IconDot     = "●"
	IconGear    = "⚙"
	IconBullet  = "•"
)

// ModeIcon returns the icon for a dashboard render mode.
func ModeIcon(live bool) string {
	if live {
		return IconRunning
	}
	return IconStopped
}

// PredictionIcon marks an image cell as a correct or incorrect prediction.
func PredictionIcon(correct bool) string {
	if correct {
		return IconSuccess
	}
	return IconError
}

// LogLevelIcon returns the appropriate icon for a log level.
func LogLevelIcon(level string) string {
	switch level {
	case "error", "ERROR":
		return IconError
	case "warn", "WARN", "warning", "WARNING":
		return IconWarning
	case "info", "INFO":
		return IconInfo
	default:
		return IconBullet
	}
}
