package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/teslashibe/go-wayfinder/pkg/location"
	"github.com/teslashibe/go-wayfinder/pkg/store"
)

// Profile is the account profile.
type Profile struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	DOBISO    string `json:"dobISO,omitempty"`
	Country   string `json:"country,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Profile fetches the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var resp struct {
		Profile *Profile `json:"profile"`
	}
	if err := c.do(ctx, true, http.MethodGet, "/profile", nil, &resp); err != nil {
		return Profile{}, err
	}
	if resp.Profile == nil {
		return Profile{}, nil
	}
	return *resp.Profile, nil
}

// UpdateProfile sends the non-empty fields of patch.
func (c *Client) UpdateProfile(ctx context.Context, patch Profile) error {
	return c.do(ctx, true, http.MethodPut, "/profile", patch, nil)
}

// Contacts fetches the server copy of the emergency contacts.
func (c *Client) Contacts(ctx context.Context) ([]store.Contact, error) {
	var resp struct {
		Contacts []store.Contact `json:"contacts"`
	}
	if err := c.do(ctx, true, http.MethodGet, "/sos/contacts", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Contacts == nil {
		return []store.Contact{}, nil
	}
	return resp.Contacts, nil
}

// SaveContacts uploads up to store.MaxContacts contacts.
func (c *Client) SaveContacts(ctx context.Context, list []store.Contact) error {
	if len(list) > store.MaxContacts {
		list = list[:store.MaxContacts]
	}
	return c.do(ctx, true, http.MethodPost, "/sos/contacts", map[string]any{"contacts": list}, nil)
}

// SOS is an emergency alert.
type SOS struct {
	FullName string   `json:"fullName,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	Phones   []string `json:"phones,omitempty"`
	Emails   []string `json:"emails,omitempty"`
}

// NewSOS addresses an alert to every contact with a phone or email.
// fix may be nil when no position is known.
func NewSOS(fullName string, contacts []store.Contact, fix *location.Fix) SOS {
	s := SOS{FullName: fullName}
	for _, c := range contacts {
		if c.Phone != "" {
			s.Phones = append(s.Phones, c.Phone)
		}
		if c.Email != "" {
			s.Emails = append(s.Emails, c.Email)
		}
	}
	if fix != nil {
		lat, lng := fix.Lat, fix.Lng
		s.Lat, s.Lng = &lat, &lng
	}
	return s
}

// Message renders the alert text sent to contacts.
func (s SOS) Message(email, phone string) string {
	name := s.FullName
	if name == "" {
		name = "(Name not set)"
	}
	if email == "" {
		email = "(No email)"
	}
	if phone == "" {
		phone = "(No phone)"
	}
	msg := fmt.Sprintf("EMERGENCY: %s is in danger.\nEmail: %s\nPhone: %s", name, email, phone)
	if s.Lat != nil && s.Lng != nil {
		msg += fmt.Sprintf("\nLocation: https://maps.google.com/?q=%f,%f", *s.Lat, *s.Lng)
	}
	return msg
}

// SendSOS asks the backend to deliver the alert.
func (c *Client) SendSOS(ctx context.Context, s SOS) error {
	return c.do(ctx, true, http.MethodPost, "/sos/send", s, nil)
}
