package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a unix time in seconds that may arrive as an integer or, from
// older senders, as a float. The original literal is kept so re-encoding is
// lossless.
type Timestamp struct {
	literal json.Number
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{literal: json.Number(strconv.FormatInt(t.Unix(), 10))}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	number, ok := raw.(json.Number)
	if !ok {
		return fmt.Errorf("core: timestamp must be a number, got %s", strings.TrimSpace(string(data)))
	}
	if _, err := strconv.ParseFloat(number.String(), 64); err != nil {
		return fmt.Errorf("core: invalid timestamp %q: %w", number, err)
	}
	t.literal = number
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.literal == "" {
		return []byte("0"), nil
	}
	return []byte(t.literal), nil
}

func (t Timestamp) Literal() string {
	return t.literal.String()
}

// Unix returns whole seconds. Integer literals are parsed exactly; float
// literals are truncated.
func (t Timestamp) Unix() int64 {
	if t.literal == "" {
		return 0
	}
	if seconds, err := strconv.ParseInt(t.literal.String(), 10, 64); err == nil {
		return seconds
	}
	value, err := strconv.ParseFloat(t.literal.String(), 64)
	if err != nil {
		return 0
	}
	return int64(math.Trunc(value))
}

func (t Timestamp) Time() time.Time {
	if t.literal == "" {
		return time.Time{}
	}
	if seconds, err := strconv.ParseInt(t.literal.String(), 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC()
	}
	value, err := strconv.ParseFloat(t.literal.String(), 64)
	if err != nil {
		return time.Time{}
	}
	whole, fraction := math.Modf(value)
	return time.Unix(int64(whole), int64(math.Round(fraction*1e9))).UTC()
}
