// Package directory serves the searchable doctor directory.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"healsync-portal/internal/logging"
	"healsync-portal/internal/metrics"
	"healsync-portal/internal/models"
)

// Filter narrows the listing. Empty fields match everything.
type Filter struct {
	Specialty string `form:"specialty"`
	Shift     string `form:"shift"`
	Query     string `form:"q"`
}

// Listing is a filtered directory page.
type Listing struct {
	Doctors     []models.Doctor `json:"doctors"`
	Specialties []string        `json:"specialties"`
	Shifts      []string        `json:"shifts"`
	// Fallback is set when the built-in roster was served.
	Fallback bool `json:"fallback"`
}

// DoctorLister loads the full doctor list.
type DoctorLister interface {
	ListDoctors(ctx context.Context, token string) ([]models.Doctor, error)
}

type Directory struct {
	api      DoctorLister
	logger   *logging.Logger
	metrics  *metrics.PortalMetrics
	fallback bool
}

func New(api DoctorLister, logger *logging.Logger, m *metrics.PortalMetrics) *Directory {
	if logger == nil {
		logger = logging.Default()
	}
	return &Directory{api: api, logger: logger, metrics: m, fallback: true}
}

// WithFallback toggles serving the built-in roster when the API fails.
func (d *Directory) WithFallback(enabled bool) *Directory {
	d.fallback = enabled
	return d
}

// List fetches doctors and applies f. Any API failure falls back to the
// built-in roster when enabled; the failure is only logged.
func (d *Directory) List(ctx context.Context, token string, f Filter) (*Listing, error) {
	doctors, err := d.api.ListDoctors(ctx, token)
	usedFallback := false
	if err != nil {
		if !d.fallback {
			return nil, fmt.Errorf("directory: list: %w", err)
		}
		d.logger.Warn("doctor directory unavailable, serving fallback roster", "error", err)
		d.metrics.ObserveFallback("directory")
		doctors = Roster()
		usedFallback = true
	}

	out := &Listing{
		Specialties: distinct(doctors, func(doc models.Doctor) string { return doc.Specialty }),
		Shifts:      distinct(doctors, func(doc models.Doctor) string { return doc.Shift }),
		Fallback:    usedFallback,
	}
	for _, doc := range doctors {
		if f.matches(doc) {
			out.Doctors = append(out.Doctors, doc)
		}
	}
	sort.SliceStable(out.Doctors, func(i, j int) bool {
		return strings.ToLower(out.Doctors[i].Name) < strings.ToLower(out.Doctors[j].Name)
	})
	return out, nil
}

// ErrNotFound is returned by Find for an unknown doctor id.
var ErrNotFound = errors.New("directory: doctor not found")

// Find returns one doctor by id from the listing source.
func (d *Directory) Find(ctx context.Context, token, id string) (*models.Doctor, error) {
	listing, err := d.List(ctx, token, Filter{})
	if err != nil {
		return nil, err
	}
	for i := range listing.Doctors {
		if listing.Doctors[i].ID == id {
			return &listing.Doctors[i], nil
		}
	}
	return nil, ErrNotFound
}

func (f Filter) matches(doc models.Doctor) bool {
	if f.Specialty != "" && !strings.EqualFold(strings.TrimSpace(f.Specialty), doc.Specialty) {
		return false
	}
	if f.Shift != "" && !strings.EqualFold(strings.TrimSpace(f.Shift), doc.Shift) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(doc.Name), q) && !strings.Contains(strings.ToLower(doc.Specialty), q) {
			return false
		}
	}
	return true
}

func distinct(doctors []models.Doctor, field func(models.Doctor) string) []string {
	seen := map[string]bool{}
	var out []string
	for _, doc := range doctors {
		v := strings.TrimSpace(field(doc))
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
