// Package suite loads the manifest of pages a batch run captures and compares.
package suite

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/GriffinCanCode/shotdiff/internal/capture"
	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
	"github.com/GriffinCanCode/shotdiff/internal/visual"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("shotid", func(fl validator.FieldLevel) bool {
		_, err := visual.CleanID(fl.Field().String())
		return err == nil
	})
	return v
}

// Suite is a named list of targets sharing a base URL.
type Suite struct {
	Name    string   `yaml:"name" json:"name" validate:"required"`
	BaseURL string   `yaml:"base_url" json:"base_url" validate:"omitempty,url"`
	Targets []Target `yaml:"targets" json:"targets" validate:"required,min=1,dive"`
}

// Target is one screenshot in the suite.
type Target struct {
	ID        string `yaml:"id" json:"id" validate:"required,shotid"`
	URL       string `yaml:"url,omitempty" json:"url,omitempty" validate:"omitempty,url"`
	Path      string `yaml:"path,omitempty" json:"path,omitempty" validate:"required_without=URL"`
	Selector  string `yaml:"selector,omitempty" json:"selector,omitempty"`
	FullPage  bool   `yaml:"full_page,omitempty" json:"full_page,omitempty"`
	WaitFor   string `yaml:"wait_for,omitempty" json:"wait_for,omitempty"`
	Threshold *int   `yaml:"threshold,omitempty" json:"threshold,omitempty" validate:"omitempty,min=0"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "read suite %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			appErr.WithMetadata("path", path)
		}
		return nil, err
	}
	return s, nil
}

// Parse decodes and validates a YAML manifest.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "parse suite")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field constraints, id uniqueness and URL resolvability.
func (s *Suite) Validate() error {
	if err := validate.Struct(s); err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigInvalid, "invalid suite")
	}
	seen := make(map[string]int, len(s.Targets))
	for i, t := range s.Targets {
		id, _ := visual.CleanID(t.ID)
		if prev, dup := seen[id]; dup {
			return apperrors.Newf(apperrors.CodeConfigInvalid, "duplicate target id %q", t.ID).
				WithMetadata("first", fmt.Sprint(prev)).
				WithMetadata("second", fmt.Sprint(i))
		}
		seen[id] = i
		if t.URL == "" && s.BaseURL == "" {
			return apperrors.Newf(apperrors.CodeConfigInvalid, "target %q has a path but the suite has no base_url", t.ID)
		}
	}
	return nil
}

// IDs returns target ids in manifest order.
func (s *Suite) IDs() []string {
	ids := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		ids[i] = t.ID
	}
	return ids
}

// ResolveURL returns the absolute URL for t.
func (s *Suite) ResolveURL(t Target) (string, error) {
	if t.URL != "" {
		return t.URL, nil
	}
	base, err := url.Parse(strings.TrimRight(s.BaseURL, "/") + "/")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeConfigInvalid, "parse base_url")
	}
	ref, err := url.Parse(strings.TrimLeft(t.Path, "/"))
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "parse path for %q", t.ID)
	}
	return base.ResolveReference(ref).String(), nil
}

// CaptureTarget converts t into the capture package's form.
func (s *Suite) CaptureTarget(t Target) (capture.Target, error) {
	u, err := s.ResolveURL(t)
	if err != nil {
		return capture.Target{}, err
	}
	return capture.Target{
		ID:       t.ID,
		URL:      u,
		Selector: t.Selector,
		FullPage: t.FullPage,
		WaitFor:  t.WaitFor,
	}, nil
}

// ThresholdOr returns the target's own threshold, or def when unset.
func (t Target) ThresholdOr(def int) int {
	if t.Threshold != nil {
		return *t.Threshold
	}
	return def
}

// FromIDs builds an ad-hoc suite that compares existing captures without a browser.
func FromIDs(ids ...string) *Suite {
	s := &Suite{Name: "adhoc", Targets: make([]Target, len(ids))}
	for i, id := range ids {
		s.Targets[i] = Target{ID: id}
	}
	return s
}
