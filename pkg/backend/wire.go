package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// The backend is loose about shapes: ids arrive as numbers or strings,
// references as bare ids, names or nested objects, and prices as decimal
// strings. Everything is normalized here before models are built.

// flexID accepts "12", 12 or {"id": 12}.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(strings.TrimSpace(s))
		return nil
	case '{':
		var obj struct {
			ID flexID `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*id = obj.ID
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s", data)
	}
	*id = flexID(n.String())
	return nil
}

// reference is a related record that may be embedded or referenced.
type reference struct {
	ID          string
	Name        string
	Username    string
	IsSuperuser bool
	// Numeric is set when the reference was a bare number, which is always an id.
	Numeric bool
	// Text holds a bare string reference.
	Text string
}

func (r *reference) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*r = reference{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '{':
		var obj struct {
			ID          flexID `json:"id"`
			Name        string `json:"name"`
			Username    string `json:"username"`
			IsSuperuser bool   `json:"is_superuser"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		r.ID = string(obj.ID)
		r.Name = obj.Name
		r.Username = obj.Username
		r.IsSuperuser = obj.IsSuperuser
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		r.Text = strings.TrimSpace(s)
		return nil
	}
	var id flexID
	if err := id.UnmarshalJSON(data); err != nil {
		return err
	}
	r.ID = string(id)
	r.Numeric = true
	return nil
}

// idOrText returns the id when known, otherwise the bare string.
func (r reference) idOrText() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Text
}

// flexTime parses RFC 3339 timestamps; anything else is treated as absent.
type flexTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		t.Time = time.Time{}
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

func firstTime(fallback time.Time, values ...flexTime) time.Time {
	for _, v := range values {
		if !v.IsZero() {
			return v.Time
		}
	}
	return fallback
}

// imageRef accepts "https://..." or {"image": "..."} / {"url": "..."}.
type imageRef string

func (i *imageRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Image string `json:"image"`
			URL   string `json:"url"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*i = imageRef(firstNonEmpty(obj.URL, obj.Image))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*i = imageRef(s)
	return nil
}

// wholeUnits rounds a decimal price to whole currency units.
func wholeUnits(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func firstDecimal(values ...decimal.NullDecimal) (decimal.Decimal, bool) {
	for _, v := range values {
		if v.Valid {
			return v.Decimal, true
		}
	}
	return decimal.Zero, false
}
