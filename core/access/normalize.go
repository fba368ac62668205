package access

import (
	"time"
)

// timestamp layouts observed in the log store; badge readers and older
// ingestion paths wrote string-encoded dates alongside native timestamps.
var eventTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeEventTime converts a raw stored timestamp value to a canonical
// UTC time.Time. It is the single normalization point for event times;
// repositories call it at the store-read boundary so the rest of the code
// only ever compares time.Time values. Unparseable values normalize to the
// zero time, which sorts last and therefore never masks real history.
func NormalizeEventTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return time.Time{}
		}
		return t.UTC()
	case int64:
		// unix milliseconds
		return time.UnixMilli(t).UTC()
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	case string:
		for _, layout := range eventTimeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC()
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}
