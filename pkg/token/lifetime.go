package token

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseLifetime parses a token lifetime string. It accepts the standard
// Go duration syntax ("15m", "36h") plus day and week suffixes ("7d",
// "2w") as used by the JWT_*_EXPIRES environment variables.
func ParseLifetime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty lifetime")
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("lifetime %q must be positive", s)
		}
		return d, nil
	}

	unit := s[len(s)-1]
	var per time.Duration
	switch unit {
	case 'd':
		per = 24 * time.Hour
	case 'w':
		per = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid lifetime %q", s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid lifetime %q", s)
	}
	return time.Duration(n) * per, nil
}
