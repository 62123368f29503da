package logs

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Event is one decoded run.log record.
type Event struct {
	Time      time.Time
	Level     string
	Message   string
	Component string
	Stage     string
	EventType string
	Fields    map[string]any
}

var reservedKeys = map[string]struct{}{
	"ts": {}, "level": {}, "msg": {}, "component": {}, "stage": {}, "event_type": {},
}

// ParseEvent decodes a JSON log line. Lines that are not JSON objects are
// rejected.
func ParseEvent(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return Event{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Event{}, false
	}
	ev := Event{
		Level:     strings.ToLower(stringField(raw, "level")),
		Message:   stringField(raw, "msg"),
		Component: stringField(raw, "component"),
		Stage:     stringField(raw, "stage"),
		EventType: stringField(raw, "event_type"),
		Fields:    make(map[string]any),
	}
	if ts := stringField(raw, "ts"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.Time = parsed
		}
	}
	for key, value := range raw {
		if _, reserved := reservedKeys[key]; !reserved {
			ev.Fields[key] = value
		}
	}
	return ev, true
}

func stringField(raw map[string]any, key string) string {
	if value, ok := raw[key].(string); ok {
		return value
	}
	return ""
}

// Filter selects events. Empty fields match everything.
type Filter struct {
	// MinLevel is one of debug, info, warn, error.
	MinLevel  string
	Stage     string
	EventType string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "warning": 2, "error": 3}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev Event) bool {
	if f.MinLevel != "" {
		want, ok := levelRank[strings.ToLower(f.MinLevel)]
		if ok && levelRank[ev.Level] < want {
			return false
		}
	}
	if f.Stage != "" && !strings.EqualFold(f.Stage, ev.Stage) {
		return false
	}
	if f.EventType != "" && !strings.EqualFold(f.EventType, ev.EventType) {
		return false
	}
	return true
}

// Format renders ev as "15:04:05 LEVEL [stage] component: message key=value".
// Extra fields are sorted by key; run_id and source are omitted.
func (ev Event) Format() string {
	var b strings.Builder
	if !ev.Time.IsZero() {
		b.WriteString(ev.Time.Local().Format("15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s", strings.ToUpper(ev.Level))
	if ev.Stage != "" {
		fmt.Fprintf(&b, " [%s]", ev.Stage)
	}
	b.WriteByte(' ')
	if ev.Component != "" {
		b.WriteString(ev.Component)
		b.WriteString(": ")
	}
	b.WriteString(ev.Message)
	if ev.EventType != "" {
		fmt.Fprintf(&b, " event_type=%s", ev.EventType)
	}
	for _, key := range slices.Sorted(maps.Keys(ev.Fields)) {
		if key == "run_id" || key == "source" {
			continue
		}
		fmt.Fprintf(&b, " %s=%s", key, formatValue(ev.Fields[key]))
	}
	return b.String()
}

func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		if strings.ContainsAny(v, " \t\"=") {
			return fmt.Sprintf("%q", v)
		}
		return v
	case nil:
		return "null"
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
