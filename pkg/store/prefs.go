package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// MaxContacts is how many emergency contacts are kept.
const MaxContacts = 3

// Accessibility holds display preferences.
type Accessibility struct {
	TextScale    string `json:"textScale" validate:"oneof=small medium large"`
	HighContrast bool   `json:"highContrast"`
	ReduceMotion bool   `json:"reduceMotion"`
	Handedness   string `json:"handedness" validate:"oneof=right left"`
}

// DefaultAccessibility returns the preferences used before any are saved.
func DefaultAccessibility() Accessibility {
	return Accessibility{
		TextScale:  "medium",
		Handedness: "right",
	}
}

// UsageStats accumulates detection session time.
type UsageStats struct {
	TotalSeconds float64    `json:"totalSeconds"`
	SessionCount int        `json:"sessionCount"`
	LastResetAt  *time.Time `json:"lastResetAt,omitempty"`
}

// AverageMinutes returns the mean session length.
func (u UsageStats) AverageMinutes() float64 {
	if u.SessionCount == 0 {
		return 0
	}
	return u.TotalSeconds / 60 / float64(u.SessionCount)
}

// Contact is an emergency contact.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty"`
}

// MyInfo is the user's own details attached to SOS messages.
type MyInfo struct {
	FullName string `json:"fullName,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Prefs reads and writes the typed blobs on top of a KV.
// Corrupt blobs decode to defaults and are logged.
type Prefs struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time
}

// NewPrefs wraps kv.
func NewPrefs(kv KV, logger *slog.Logger) *Prefs {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prefs{
		kv:     kv,
		logger: logger.With("component", "store"),
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (p *Prefs) SetClock(now func() time.Time) {
	p.now = now
}

// KV returns the underlying store.
func (p *Prefs) KV() KV {
	return p.kv
}

// Accessibility returns saved preferences merged over the defaults.
func (p *Prefs) Accessibility(ctx context.Context) (Accessibility, error) {
	prefs := DefaultAccessibility()
	ok, err := p.getJSONOK(ctx, KeyAccessibility, &prefs)
	if err != nil || !ok {
		return DefaultAccessibility(), err
	}
	return prefs, nil
}

// UpdateAccessibility merges patch (a partial JSON object) over the
// current preferences and saves the result.
func (p *Prefs) UpdateAccessibility(ctx context.Context, patch []byte) (Accessibility, error) {
	prefs, err := p.Accessibility(ctx)
	if err != nil {
		return prefs, err
	}
	if err := json.Unmarshal(patch, &prefs); err != nil {
		return prefs, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if err := validate.Struct(prefs); err != nil {
		return prefs, err
	}
	return prefs, p.setJSON(ctx, KeyAccessibility, prefs)
}

// UsageStats returns accumulated stats, zero with lastResetAt=now when none
// are saved.
func (p *Prefs) UsageStats(ctx context.Context) (UsageStats, error) {
	var stats UsageStats
	ok, err := p.getJSONOK(ctx, KeyUsageStats, &stats)
	if err != nil || !ok {
		now := p.now().UTC()
		return UsageStats{LastResetAt: &now}, err
	}
	return stats, nil
}

// RecordSession adds one session of length d.
func (p *Prefs) RecordSession(ctx context.Context, d time.Duration) (UsageStats, error) {
	var stats UsageStats
	if ok, err := p.getJSONOK(ctx, KeyUsageStats, &stats); err != nil {
		return stats, err
	} else if !ok {
		stats = UsageStats{}
	}
	if d < 0 {
		d = 0
	}
	stats.TotalSeconds += d.Seconds()
	stats.SessionCount++
	return stats, p.setJSON(ctx, KeyUsageStats, stats)
}

// ResetUsage zeroes the stats and stamps the reset time.
func (p *Prefs) ResetUsage(ctx context.Context) (UsageStats, error) {
	now := p.now().UTC()
	stats := UsageStats{LastResetAt: &now}
	return stats, p.setJSON(ctx, KeyUsageStats, stats)
}

// Contacts returns saved emergency contacts.
func (p *Prefs) Contacts(ctx context.Context) ([]Contact, error) {
	var list []Contact
	ok, err := p.getJSONOK(ctx, KeyContacts, &list)
	if err != nil || !ok || list == nil {
		return []Contact{}, err
	}
	return list, nil
}

// SaveContacts keeps the first MaxContacts entries.
func (p *Prefs) SaveContacts(ctx context.Context, list []Contact) ([]Contact, error) {
	if len(list) > MaxContacts {
		list = list[:MaxContacts]
	}
	if list == nil {
		list = []Contact{}
	}
	return list, p.setJSON(ctx, KeyContacts, list)
}

// MyInfo returns the saved user details.
func (p *Prefs) MyInfo(ctx context.Context) (MyInfo, error) {
	var info MyInfo
	ok, err := p.getJSONOK(ctx, KeyMyInfo, &info)
	if err != nil || !ok {
		return MyInfo{}, err
	}
	return info, nil
}

// SaveMyInfo stores the user details.
func (p *Prefs) SaveMyInfo(ctx context.Context, info MyInfo) error {
	return p.setJSON(ctx, KeyMyInfo, info)
}

// Token returns the saved bearer token, or "".
func (p *Prefs) Token(ctx context.Context) (string, error) {
	v, _, err := p.kv.Get(ctx, KeyToken)
	return v, err
}

// SaveToken stores the bearer token. An empty token deletes it.
func (p *Prefs) SaveToken(ctx context.Context, token string) error {
	if token == "" {
		return p.kv.Delete(ctx, KeyToken)
	}
	return p.kv.Set(ctx, KeyToken, token)
}

// BiometricEnabled reports whether the user opted in.
func (p *Prefs) BiometricEnabled(ctx context.Context) (bool, error) {
	v, _, err := p.kv.Get(ctx, KeyBioEnabled)
	return v == "1", err
}

// EnableBiometric records the opt-in. It is never cleared.
func (p *Prefs) EnableBiometric(ctx context.Context) error {
	return p.kv.Set(ctx, KeyBioEnabled, "1")
}

// getJSONOK decodes key into v. Decode failures are logged and reported
// as missing so callers fall back to defaults.
func (p *Prefs) getJSONOK(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := p.kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		p.logger.Warn("discarding corrupt blob", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (p *Prefs) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return p.kv.Set(ctx, key, string(data))
}
