package veml6075

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Mode selects how the sensor schedules conversions.
type Mode uint8

const (
	// Continuous lets the sensor convert back to back.
	Continuous Mode = iota
	// ActiveForce converts once per TriggerMeasurement call.
	ActiveForce
)

func (m Mode) String() string {
	switch m {
	case Continuous:
		return "continuous"
	case ActiveForce:
		return "active_force"
	default:
		return "unknown"
	}
}

// DynamicSetting selects the sensor's dynamic range.
type DynamicSetting uint8

const (
	Normal DynamicSetting = iota
	High
)

func (ds DynamicSetting) String() string {
	switch ds {
	case Normal:
		return "normal"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// IntegrationTime is the per-conversion exposure.
type IntegrationTime uint8

const (
	IT50ms IntegrationTime = iota
	IT100ms
	IT200ms
	IT400ms
	IT800ms
)

// itTable maps each IntegrationTime onto its UV_IT field code and duration.
var itTable = [...]struct {
	code uint8
	dur  time.Duration
}{
	IT50ms:  {0, 50 * time.Millisecond},
	IT100ms: {1, 100 * time.Millisecond},
	IT200ms: {2, 200 * time.Millisecond},
	IT400ms: {3, 400 * time.Millisecond},
	IT800ms: {4, 800 * time.Millisecond},
}

func (it IntegrationTime) valid() bool { return int(it) < len(itTable) }

// Duration returns the nominal conversion time. Callers in ActiveForce mode
// must wait at least this long after TriggerMeasurement before reading.
func (it IntegrationTime) Duration() time.Duration {
	if !it.valid() {
		return 0
	}
	return itTable[it].dur
}

func (it IntegrationTime) String() string {
	if !it.valid() {
		return "unknown"
	}
	return it.Duration().String()
}

// Errors returned when parsing settings from configuration.
var (
	ErrInvalidIntegrationTime = errors.New("veml6075: invalid integration time")
	ErrInvalidMode            = errors.New("veml6075: invalid mode")
	ErrInvalidDynamicSetting  = errors.New("veml6075: invalid dynamic setting")
)

// ParseIntegrationTime accepts "100ms", "100" or any time.Duration string
// equal to one of the supported integration times.
func ParseIntegrationTime(s string) (IntegrationTime, error) {
	s = strings.TrimSpace(s)
	var d time.Duration
	if ms, err := strconv.Atoi(s); err == nil {
		if ms <= 0 || ms > 800 {
			return 0, ErrInvalidIntegrationTime
		}
		d = time.Duration(ms) * time.Millisecond
	} else if d, err = time.ParseDuration(s); err != nil {
		return 0, ErrInvalidIntegrationTime
	}
	for i := range itTable {
		if itTable[i].dur == d {
			return IntegrationTime(i), nil
		}
	}
	return 0, ErrInvalidIntegrationTime
}

// ParseMode accepts "continuous", "active_force", "force" or "one_shot".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continuous":
		return Continuous, nil
	case "active_force", "force", "one_shot", "oneshot":
		return ActiveForce, nil
	}
	return 0, ErrInvalidMode
}

// ParseDynamicSetting accepts "normal" or "high"/"hd".
func ParseDynamicSetting(s string) (DynamicSetting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return Normal, nil
	case "high", "hd":
		return High, nil
	}
	return 0, ErrInvalidDynamicSetting
}
