package domain

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gitlab.com/tozd/go/errors"
)

// SourceKind identifies how a repository source resolves to remote files.
type SourceKind string

const (
	// SourceGitHubAPI is a bulk-listing source: a directory-listing endpoint
	// returns the files to download, filtered by FilePattern.
	SourceGitHubAPI SourceKind = "github_api"
	// SourceDirectURL is a single file at a known URL.
	SourceDirectURL SourceKind = "direct_url"
	// SourceGitHubRaw is a single raw file hosted on GitHub; handled like SourceDirectURL.
	SourceGitHubRaw SourceKind = "github_raw"
)

// IsBulk reports whether the kind discovers its files through a listing call.
func (k SourceKind) IsBulk() bool { return k == SourceGitHubAPI }

// IsDirect reports whether the kind is a single known file.
func (k SourceKind) IsDirect() bool { return k == SourceDirectURL || k == SourceGitHubRaw }

// DefaultDestinationFolder is applied to sources added without a destination folder.
const DefaultDestinationFolder = "Custom Lists"

// RepositorySource describes one remote blocklist source.
//
// Notes:
// - ID is unique across the registry and never changes after creation.
// - APIURL and FilePattern apply to bulk-listing sources; URL and Filename to direct ones.
// - DestinationFolder is relative to RegistrySettings.DefaultDestination.
type RepositorySource struct {
	ID                string     `json:"id" validate:"required"`
	Name              string     `json:"name" validate:"required"`
	Source            SourceKind `json:"source" validate:"required,oneof=github_api direct_url github_raw"`
	Enabled           bool       `json:"enabled"`
	Description       string     `json:"description"`
	DestinationFolder string     `json:"destination_folder"`
	APIURL            string     `json:"api_url,omitempty" validate:"omitempty,url"`
	FilePattern       string     `json:"file_pattern,omitempty"`
	URL               string     `json:"url,omitempty" validate:"omitempty,url"`
	Filename          string     `json:"filename,omitempty"`
}

// DisplayName returns the name, falling back to the ID.
func (s RepositorySource) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.ID != "" {
		return s.ID
	}
	return "Unknown"
}

// Validate checks required fields and supported values. The returned error
// message is suitable for showing to a user.
func (s RepositorySource) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.WithStack(err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		switch fe.Field() {
		case "id":
			return errors.New("repository id is required")
		case "name":
			return errors.New("repository name is required")
		case "source":
			return errors.New("source type is required")
		}
	case "oneof":
		return errors.Errorf("unsupported source type %q", s.Source)
	case "url":
		return errors.Errorf("invalid url in %s: %q", fe.Field(), fe.Value())
	}
	return errors.Errorf("invalid %s", fe.Field())
}

// SourcePatch carries field-level changes for an existing source. Nil fields
// are left untouched. ID is accepted so callers can pass a whole record, but
// it is never applied.
type SourcePatch struct {
	ID                *string
	Name              *string
	Source            *SourceKind
	Enabled           *bool
	Description       *string
	DestinationFolder *string
	APIURL            *string
	FilePattern       *string
	URL               *string
	Filename          *string
}

// Apply returns a copy of s with the patch applied. The ID is preserved.
func (p SourcePatch) Apply(s RepositorySource) RepositorySource {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Source != nil {
		s.Source = *p.Source
	}
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.DestinationFolder != nil {
		s.DestinationFolder = *p.DestinationFolder
	}
	if p.APIURL != nil {
		s.APIURL = *p.APIURL
	}
	if p.FilePattern != nil {
		s.FilePattern = *p.FilePattern
	}
	if p.URL != nil {
		s.URL = *p.URL
	}
	if p.Filename != nil {
		s.Filename = *p.Filename
	}
	return s
}

// IsEmpty reports whether the patch changes nothing.
func (p SourcePatch) IsEmpty() bool {
	return p.Name == nil && p.Source == nil && p.Enabled == nil && p.Description == nil &&
		p.DestinationFolder == nil && p.APIURL == nil && p.FilePattern == nil &&
		p.URL == nil && p.Filename == nil
}

// RegistrySettings holds registry-wide options.
type RegistrySettings struct {
	DefaultDestination     string `json:"default_destination"`
	AutoEnableNew          bool   `json:"auto_enable_new"`
	VerifyDownloads        bool   `json:"verify_downloads"`
	MaxConcurrentDownloads int    `json:"max_concurrent_downloads"`
}

// SettingsPatch carries changes to RegistrySettings. Nil fields are left untouched.
type SettingsPatch struct {
	DefaultDestination     *string
	AutoEnableNew          *bool
	VerifyDownloads        *bool
	MaxConcurrentDownloads *int
}

// Apply returns a copy of s with the patch applied.
func (p SettingsPatch) Apply(s RegistrySettings) RegistrySettings {
	if p.DefaultDestination != nil {
		s.DefaultDestination = *p.DefaultDestination
	}
	if p.AutoEnableNew != nil {
		s.AutoEnableNew = *p.AutoEnableNew
	}
	if p.VerifyDownloads != nil {
		s.VerifyDownloads = *p.VerifyDownloads
	}
	if p.MaxConcurrentDownloads != nil {
		s.MaxConcurrentDownloads = *p.MaxConcurrentDownloads
	}
	return s
}

// Registry is the aggregate persisted as a single document.
type Registry struct {
	Repositories []RepositorySource `json:"repositories"`
	Settings     RegistrySettings   `json:"settings"`
}

// Clone returns a deep copy so callers cannot mutate the registry's slice.
func (r Registry) Clone() Registry {
	out := Registry{Settings: r.Settings}
	out.Repositories = append(make([]RepositorySource, 0, len(r.Repositories)), r.Repositories...)
	return out
}

// ListingEntry is one file returned by a bulk-listing endpoint.
type ListingEntry struct {
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
}

var validate = newValidator()

// newValidator builds a validator that reports json field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
