package drop

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	timestampLayout = "2006-01-02T15:04:05"
	dateOnlyLayout  = "2006-01-02"

	originalNameKey = "file_name"
	timestampSuffix = "_at"
)

// mapping associates one canonical attribute with its candidate raw
// keys, tried in priority order. The first present, non-null candidate
// wins; if none match the attribute is set to its zero value.
type mapping struct {
	origins []string
	target  string
}

var fieldMappings = []mapping{
	{[]string{"id"}, "id"},
	{[]string{"slug"}, "slug"},
	{[]string{"created_at"}, "uploaded"},
	{[]string{"item_type"}, "type"},
	{[]string{"name"}, "name"},
	{[]string{"redirect_url"}, "target"},
	{[]string{"file_name", "name"}, "original"},
	{[]string{"view_counter"}, "views"},
	{[]string{"source_url", "remote_url"}, "content"},
	{[]string{"stats_url"}, "stats"},
	{[]string{"content_length"}, "size"},
	{[]string{"favourite"}, "favourite"},
}

// NormalizationError reports a date-like raw field whose value could
// not be parsed with any known layout. It indicates a remote schema
// change and is fatal for the construction of the affected drop.
type NormalizationError struct {
	Key   string
	Value string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("cannot parse timestamp %q in field %q", e.Value, e.Key)
}

// preprocess transforms raw string values in place before the field
// mapping runs: the original file name is percent-decoded and every
// non-empty "*_at" field is replaced with a parsed time.Time. The
// transformed values are the ones that get persisted in the snapshot.
func preprocess(record map[string]interface{}) error {
	for key, value := range record {
		s, ok := value.(string)
		if !ok {
			continue
		}

		switch {
		case key == originalNameKey:
			if decoded, err := url.PathUnescape(s); err == nil {
				record[key] = decoded
			}
		case strings.HasSuffix(key, timestampSuffix) && s != "":
			t, err := parseTimestamp(s)
			if err != nil {
				return &NormalizationError{Key: key, Value: s}
			}
			record[key] = t
		}
	}
	return nil
}

// parseTimestamp tries the full timestamp layout with any trailing Z
// stripped, then falls back to the date-only layout.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, strings.TrimRight(s, "Z"))
	if err != nil {
		t, err = time.Parse(dateOnlyLayout, s)
	}
	return t, err
}

func pick(record map[string]interface{}, origins []string) interface{} {
	for _, origin := range origins {
		if v, ok := record[origin]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	default:
		return 0
	}
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

// FieldString renders one raw record field for use in file names,
// formatting whole JSON numbers without an exponent or fraction.
func FieldString(record map[string]interface{}, key string) string {
	switch t := record[key].(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
