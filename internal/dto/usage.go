package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"guardian/internal/domain"
)

// UsageSample is one app's foreground minutes from a child device.
type UsageSample struct {
	App     string
	Minutes int
}

// UsageBatch keeps the key order of the JSON object the device sent, e.g.
//
//	{"com.whatsapp": 90, "YouTube": "30", "Maps": [5]}
//
// Values may be an integer, a numeric string, or a one-element list of either.
type UsageBatch []UsageSample

func (b *UsageBatch) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("usage batch must be a JSON object")
	}

	out := UsageBatch{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		app, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("app %q: %w", app, err)
		}
		minutes, err := parseMinutes(raw)
		if err != nil {
			return fmt.Errorf("app %q: %w", app, err)
		}
		out = append(out, UsageSample{App: app, Minutes: minutes})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*b = out
	return nil
}

func (b UsageBatch) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(s.App)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(s.Minutes))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func parseMinutes(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return 0, err
		}
		if len(list) != 1 {
			return 0, fmt.Errorf("expected one value, got %d", len(list))
		}
		raw = bytes.TrimSpace(list[0])
	}

	var s string
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
	} else {
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	// whole floats like 90.0 are accepted
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) <= math.MaxInt32 {
		return int(f), nil
	}
	return 0, fmt.Errorf("minutes must be an integer, got %s", s)
}

// Trimmed returns a copy with surrounding whitespace removed from app names,
// so exclusion and duplicate checks see the same names the store does.
func (b UsageBatch) Trimmed() UsageBatch {
	out := make(UsageBatch, len(b))
	for i, s := range b {
		out[i] = UsageSample{App: strings.TrimSpace(s.App), Minutes: s.Minutes}
	}
	return out
}

// Without drops every sample whose app is in excluded.
func (b UsageBatch) Without(excluded map[string]struct{}) UsageBatch {
	out := make(UsageBatch, 0, len(b))
	for _, s := range b {
		if _, skip := excluded[s.App]; !skip {
			out = append(out, s)
		}
	}
	return out
}

func (b UsageBatch) Validate() error {
	v := domain.NewValidationError()
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		app := strings.TrimSpace(s.App)
		switch {
		case app == "":
			v.Add("app", "app name must not be empty")
			continue
		case utf8.RuneCountInString(app) > domain.MaxAppNameLength:
			v.Add(app, fmt.Sprintf("app name must be at most %d characters", domain.MaxAppNameLength))
		case s.Minutes < 0:
			v.Add(app, "minutes must not be negative")
		case s.Minutes > domain.MaxUsageMinutes:
			v.Add(app, fmt.Sprintf("minutes must be at most %d", domain.MaxUsageMinutes))
		}
		if _, dup := seen[app]; dup {
			v.Add(app, "app listed more than once")
		}
		seen[app] = struct{}{}
	}
	return v.Err()
}

// AppShare is one app's share of the batch, in batch order.
type AppShare struct {
	App        string  `json:"app"`
	Minutes    int     `json:"minutes"`
	Percentage float64 `json:"percentage"`
	Duration   string  `json:"hour"`
}

type UsageReport struct {
	Message     string             `json:"message"`
	Total       int                `json:"totalMinutes"`
	Apps        []AppShare         `json:"apps"`
	Percentages map[string]float64 `json:"usage_percentages"`
}

type AppUsage struct {
	App       string    `json:"appName"`
	Minutes   int       `json:"minutes"`
	Duration  string    `json:"hour"`
	Icon      string    `json:"imageOfApp,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
