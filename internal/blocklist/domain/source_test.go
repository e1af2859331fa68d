package domain

import (
	"strings"
	"testing"
)

func TestRepositorySource_Validate(t *testing.T) {
	tests := []struct {
		name    string
		src     RepositorySource
		wantErr string
	}{
		{
			name: "valid bulk",
			src: RepositorySource{ID: "hostlists", Name: "Hostlists", Source: SourceGitHubAPI,
				APIURL: "https://api.github.com/repos/o/r/contents/assets", FilePattern: `filter_\d+\.txt`},
		},
		{
			name: "valid direct",
			src:  RepositorySource{ID: "one", Name: "One", Source: SourceDirectURL, URL: "https://example.com/list.txt", Filename: "list.txt"},
		},
		{
			name: "valid raw without url",
			src:  RepositorySource{ID: "raw", Name: "Raw", Source: SourceGitHubRaw},
		},
		{name: "missing id", src: RepositorySource{Name: "x", Source: SourceDirectURL}, wantErr: "repository id is required"},
		{name: "missing name", src: RepositorySource{ID: "x", Source: SourceDirectURL}, wantErr: "repository name is required"},
		{name: "missing source", src: RepositorySource{ID: "x", Name: "x"}, wantErr: "source type is required"},
		{name: "unknown source", src: RepositorySource{ID: "x", Name: "x", Source: "ftp"}, wantErr: "unsupported source type"},
		{name: "bad url", src: RepositorySource{ID: "x", Name: "x", Source: SourceDirectURL, URL: "not a url"}, wantErr: "invalid url in url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.src.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if _, ok := err.(interface{ StackTrace() []uintptr }); !ok {
				t.Errorf("expected error with stack trace, got %T", err)
			}
		})
	}
}

func TestSourceKind(t *testing.T) {
	if !SourceGitHubAPI.IsBulk() || SourceGitHubAPI.IsDirect() {
		t.Error("github_api should be bulk only")
	}
	if !SourceDirectURL.IsDirect() || !SourceGitHubRaw.IsDirect() {
		t.Error("direct_url and github_raw should be direct")
	}
	if SourceKind("other").IsBulk() || SourceKind("other").IsDirect() {
		t.Error("unknown kinds are neither bulk nor direct")
	}
}

func TestSourcePatch_Apply(t *testing.T) {
	orig := RepositorySource{ID: "a", Name: "A", Source: SourceDirectURL, Enabled: true, URL: "https://x.test/a.txt"}
	newID := "b"
	newName := "Renamed"
	disabled := false
	p := SourcePatch{ID: &newID, Name: &newName, Enabled: &disabled}

	got := p.Apply(orig)
	if got.ID != "a" {
		t.Errorf("ID must be immutable, got %q", got.ID)
	}
	if got.Name != "Renamed" || got.Enabled {
		t.Errorf("patch not applied: %+v", got)
	}
	if got.URL != orig.URL {
		t.Errorf("untouched field changed: %q", got.URL)
	}
	if orig.Name != "A" {
		t.Errorf("Apply mutated its input")
	}
	if p.IsEmpty() {
		t.Error("patch with fields reported empty")
	}
	if !(SourcePatch{ID: &newID}).IsEmpty() {
		t.Error("patch carrying only an ID should be empty")
	}
}

func TestRepositorySource_DisplayName(t *testing.T) {
	if n := (RepositorySource{ID: "id", Name: "Name"}).DisplayName(); n != "Name" {
		t.Errorf("got %q", n)
	}
	if n := (RepositorySource{ID: "id"}).DisplayName(); n != "id" {
		t.Errorf("got %q", n)
	}
	if n := (RepositorySource{}).DisplayName(); n != "Unknown" {
		t.Errorf("got %q", n)
	}
}

func TestRegistry_Clone(t *testing.T) {
	r := Registry{Repositories: []RepositorySource{{ID: "a"}}, Settings: RegistrySettings{AutoEnableNew: true}}
	c := r.Clone()
	c.Repositories[0].ID = "changed"
	if r.Repositories[0].ID != "a" {
		t.Fatal("clone shares backing array with original")
	}
	if !c.Settings.AutoEnableNew {
		t.Fatal("settings not copied")
	}
}

func TestSettingsPatch_Apply(t *testing.T) {
	base := RegistrySettings{DefaultDestination: "/lists", AutoEnableNew: true, MaxConcurrentDownloads: 5}
	verify := true
	n := 2
	got := SettingsPatch{VerifyDownloads: &verify, MaxConcurrentDownloads: &n}.Apply(base)

	want := RegistrySettings{DefaultDestination: "/lists", AutoEnableNew: true, VerifyDownloads: true, MaxConcurrentDownloads: 2}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if (SettingsPatch{}).Apply(base) != base {
		t.Error("empty patch changed settings")
	}
}
