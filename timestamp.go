package docutray

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Timestamp wraps time.Time with lenient JSON decoding. The API is not
// consistent about timestamp formats across endpoints (RFC 3339 with and
// without fractional seconds, plain dates), so anything dateparse can
// recognize is accepted. Null and empty strings decode to the zero value.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}

	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		t.Time = time.Time{}
		return nil
	}

	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	if value == "" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := dateparse.ParseAny(value)
	if err != nil {
		return err
	}

	t.Time = parsed
	return nil
}
