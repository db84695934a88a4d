package runtime

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseSchedule parses a sweep schedule.
// Supports:
//   - Cron expressions: "0 0 9 * * *" (6-field) or "0 9 * * *" (5-field)
//   - Descriptors: "@daily", "@every 6h"
//   - Go duration strings: "6h", "1h30m"
func ParseSchedule(schedule string) (cron.Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("schedule string is empty")
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if sched, err := parser.Parse(schedule); err == nil {
		return sched, nil
	}

	duration, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule %q as cron expression or duration: %w", schedule, err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("schedule duration must be positive, got %s", duration)
	}
	return cron.Every(duration), nil
}
