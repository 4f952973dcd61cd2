package services

import (
	"fmt"
	"strings"
	"time"
)

// nairobi is the market timezone; all viewing schedules are wall-clock times
// in it.
var nairobi = func() *time.Location {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}()

// splitWindow parses a "HH:MM-HH:MM" viewing window.
func splitWindow(window string) (start, end string, err error) {
	parts := strings.SplitN(window, "-", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid time window %q", window)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// parseSlotTime combines a YYYY-MM-DD date and HH:MM time into a moment in the
// market timezone.
func parseSlotTime(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, nairobi)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %s %s: %w", date, clock, err)
	}
	return t, nil
}

// autoReleaseAt computes the deadline after which an untouched booking's
// escrow auto-releases: scheduled end plus the grace period.
func autoReleaseAt(date, endClock string, grace time.Duration) (time.Time, error) {
	end, err := parseSlotTime(date, endClock)
	if err != nil {
		return time.Time{}, err
	}
	return end.Add(grace), nil
}

// endOfWindow returns the window's end clock, or start plus the default
// viewing length when the window carries no end.
func endOfWindow(date, start, end string, defaultMins int) (string, error) {
	if end != "" {
		return end, nil
	}
	t, err := parseSlotTime(date, start)
	if err != nil {
		return "", err
	}
	return t.Add(time.Duration(defaultMins) * time.Minute).Format("15:04"), nil
}
