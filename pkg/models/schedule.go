package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

type ScheduleUnit string

const (
	MinuteScheduleUnit ScheduleUnit = "m"
	HourScheduleUnit   ScheduleUnit = "h"
	DayScheduleUnit    ScheduleUnit = "d"
)

var scheduleIntervalPattern = regexp.MustCompile(`^([0-9]+)([mhd])$`)

// maxScheduleValue keeps Duration() well inside time.Duration's range.
const maxScheduleValue = 100000

// ScheduleInterval is the parsed form of a "<value><unit>" string such as "5m".
type ScheduleInterval struct {
	Value int
	Unit  ScheduleUnit
}

// ParseScheduleInterval parses s, requiring a positive integer followed by m, h or d.
func ParseScheduleInterval(s string) (ScheduleInterval, error) {
	m := scheduleIntervalPattern.FindStringSubmatch(s)
	if m == nil {
		return ScheduleInterval{}, fmt.Errorf("invalid schedule interval %q: expected <number><m|h|d>", s)
	}
	value, err := strconv.Atoi(m[1])
	if err != nil || value <= 0 || value > maxScheduleValue {
		return ScheduleInterval{}, fmt.Errorf("invalid schedule interval %q: value must be between 1 and %d", s, maxScheduleValue)
	}
	return ScheduleInterval{Value: value, Unit: ScheduleUnit(m[2])}, nil
}

func (si ScheduleInterval) Duration() time.Duration {
	switch si.Unit {
	case MinuteScheduleUnit:
		return time.Duration(si.Value) * time.Minute
	case HourScheduleUnit:
		return time.Duration(si.Value) * time.Hour
	case DayScheduleUnit:
		return time.Duration(si.Value) * 24 * time.Hour
	}
	return 0
}

func (si ScheduleInterval) String() string {
	return strconv.Itoa(si.Value) + string(si.Unit)
}
