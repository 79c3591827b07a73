package trends

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/polltrend/internal/contracts"
)

// spanPattern matches calendar spans such as "D", "1D", "7D", "W", "2W"
var spanPattern = regexp.MustCompile(`^(\d*)([DW])$`)

// ParseSpan converts a frequency or window specification into whole days.
// Accepted: "<n>D", "<n>W" (n defaults to 1) or a Go duration that is a
// positive multiple of 24h ("168h").
func ParseSpan(field, spec string) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(spec))
	if s == "" {
		return 0, &contracts.ConfigError{Field: field, Message: "empty span"}
	}

	if m := spanPattern.FindStringSubmatch(s); m != nil {
		n := 1
		if m[1] != "" {
			v, err := strconv.Atoi(m[1])
			if err != nil {
				return 0, &contracts.ConfigError{Field: field, Message: fmt.Sprintf("invalid span %q", spec)}
			}
			n = v
		}
		if n <= 0 {
			return 0, &contracts.ConfigError{Field: field, Message: fmt.Sprintf("span %q must be positive", spec)}
		}
		if m[2] == "W" {
			n *= 7
		}
		return n, nil
	}

	d, err := time.ParseDuration(strings.ToLower(s))
	if err != nil {
		return 0, &contracts.ConfigError{Field: field, Message: fmt.Sprintf("invalid span %q (use e.g. 1D, 7D, 2W or 168h)", spec)}
	}
	if d <= 0 || d%(24*time.Hour) != 0 {
		return 0, &contracts.ConfigError{Field: field, Message: fmt.Sprintf("span %q must be a positive whole number of days", spec)}
	}
	return int(d / (24 * time.Hour)), nil
}
