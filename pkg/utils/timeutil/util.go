/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package timeutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	TimeRFC3339Short = "2006-01-02T15:04:05"
)

func FormatRFC3339(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(TimeRFC3339Short)
}

// ParseCronStandard parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
func ParseCronStandard(scheduleStr string) (cron.Schedule, error) {
	if scheduleStr == "" {
		return nil, fmt.Errorf("invalid input")
	}
	if len(strings.Fields(scheduleStr)) != 5 {
		return nil, fmt.Errorf("invalid cron schedule: %s", scheduleStr)
	}
	return cron.ParseStandard(scheduleStr)
}

// NextCronTime returns the next firing time strictly after the given time.
func NextCronTime(scheduleStr string, after time.Time) (time.Time, error) {
	schedule, err := ParseCronStandard(scheduleStr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(after), nil
}
