// Package fetcher downloads the files described by the enabled registry
// sources into their destination folders.
package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/haukened/blocklist-manager/internal/blocklist/common/clock"
	"github.com/haukened/blocklist-manager/internal/blocklist/common/log"
	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"github.com/haukened/blocklist-manager/internal/blocklist/gateways/download"
	"github.com/haukened/blocklist-manager/internal/blocklist/gateways/listing"
	"github.com/haukened/blocklist-manager/internal/blocklist/repos/listingcache"
	"github.com/haukened/blocklist-manager/internal/blocklist/repos/manifest"
	"gitlab.com/tozd/go/errors"
)

// DefaultBulkEstimate is the number of files a bulk source is assumed to
// contribute to the progress denominator.
const DefaultBulkEstimate = 50

// ErrNoSources is returned when the registry has no enabled sources.
var ErrNoSources = errors.Base("no repositories enabled")

// RegistryReader is the view of the registry the fetcher needs. It is read
// at the start of every run.
type RegistryReader interface {
	Enabled() []domain.RepositorySource
	ResolveDestination(src domain.RepositorySource) string
	Settings() domain.RegistrySettings
}

// reloader is implemented by registries that can re-read their store, such
// as registry.Manager. FetchAll reloads them so edits made since the
// registry was opened take effect.
type reloader interface {
	Reload() error
}

// Downloader writes a URL's body to a path.
type Downloader interface {
	Download(ctx context.Context, url, path string, opts ...download.Option) (download.Download, error)
}

// Result summarizes a fetch run.
type Result struct {
	Downloaded int
	OK         bool
}

// Options configures a Fetcher. Zero values select defaults.
type Options struct {
	BulkEstimate int
	Cache        listingcache.Cache
	Manifest     manifest.Manifest
	Clock        clock.Clock
	Logger       log.Logger
}

// Fetcher processes registry sources strictly one after another.
type Fetcher struct {
	lister     listing.Client
	downloader Downloader
	cache      listingcache.Cache
	manifest   manifest.Manifest
	clock      clock.Clock
	estimate   int
	logger     log.Logger
}

// New returns a Fetcher using lister for bulk sources and downloader for files.
func New(lister listing.Client, downloader Downloader, opts Options) *Fetcher {
	f := &Fetcher{
		lister:     lister,
		downloader: downloader,
		cache:      opts.Cache,
		manifest:   opts.Manifest,
		clock:      opts.Clock,
		estimate:   opts.BulkEstimate,
		logger:     opts.Logger,
	}
	if f.cache == nil {
		f.cache, _ = listingcache.New(0)
	}
	if f.manifest == nil {
		f.manifest = manifest.Nop()
	}
	if f.clock == nil {
		f.clock = clock.RealClock{}
	}
	if f.estimate <= 0 {
		f.estimate = DefaultBulkEstimate
	}
	if f.logger == nil {
		f.logger = log.NewNoopLogger()
	}
	return f
}

// run holds the state of one FetchAll call.
type run struct {
	*Fetcher
	ctx        context.Context
	sink       domain.Sink
	verify     bool
	total      int
	downloaded int
}

// FetchAll downloads every file of every enabled source. A failing source is
// logged and skipped; the run continues with the next one.
func (f *Fetcher) FetchAll(ctx context.Context, reg RegistryReader, sink domain.Sink) (Result, error) {
	if sink == nil {
		sink = domain.NopSink()
	}

	if rl, ok := reg.(reloader); ok {
		if err := rl.Reload(); err != nil {
			f.logger.Warn(map[string]any{"error": err.Error()}, "registry reload failed, using loaded registry")
		}
	}

	sources := reg.Enabled()
	if len(sources) == 0 {
		sink.OnLog("No repositories enabled! Please enable at least one repository.")
		f.logger.Warn(nil, "no enabled repositories")
		return Result{}, ErrNoSources
	}

	r := &run{
		Fetcher: f,
		ctx:     ctx,
		sink:    sink,
		verify:  reg.Settings().VerifyDownloads,
	}
	for _, src := range sources {
		if src.Source.IsBulk() {
			r.total += f.estimate
		} else {
			r.total++
		}
	}
	f.cache.Purge()
	hits0, misses0, _ := f.cache.Stats()

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			sink.OnLog("Error: " + err.Error())
			f.logger.Error(map[string]any{"error": err.Error()}, "fetch aborted")
			return Result{Downloaded: r.downloaded}, errors.WithStack(err)
		}
		r.fetchSource(src, reg.ResolveDestination(src))
	}

	sink.OnProgress(100, "Complete")
	hits, misses, _ := f.cache.Stats()
	f.logger.Info(map[string]any{
		"downloaded":      r.downloaded,
		"sources":         len(sources),
		"listing_hits":    hits - hits0,
		"listing_misses":  misses - misses0,
		"listings_cached": f.cache.Len(),
	}, "fetch complete")
	return Result{Downloaded: r.downloaded, OK: true}, nil
}

func (r *run) fetchSource(src domain.RepositorySource, dest string) {
	name := src.DisplayName()
	logger := r.logger.With(map[string]any{"source": src.ID})
	r.sink.OnLog(fmt.Sprintf("Processing %s...", name))

	if err := os.MkdirAll(dest, 0o755); err != nil {
		r.sink.OnLog(fmt.Sprintf("Error with %s: %v", name, err))
		logger.Error(map[string]any{"dest": dest, "error": err.Error()}, "cannot create destination")
		return
	}

	switch {
	case src.Source.IsBulk():
		if err := r.fetchBulk(src, dest); err != nil {
			r.sink.OnLog(fmt.Sprintf("Error with %s: %v", name, err))
			logger.Warn(map[string]any{"error": err.Error()}, "source failed")
		}
	case src.Source.IsDirect():
		if src.URL == "" || src.Filename == "" {
			r.sink.OnLog(fmt.Sprintf("Missing URL or filename for %s", name))
			return
		}
		if err := r.fetchFile(src, src.URL, dest, src.Filename); err != nil {
			r.sink.OnLog(fmt.Sprintf("Error downloading %s: %v", src.Filename, err))
			logger.Warn(map[string]any{"file": src.Filename, "error": err.Error()}, "download failed")
		}
	default:
		r.sink.OnLog(fmt.Sprintf("Unsupported source type %q for %s", src.Source, name))
	}
}

// fetchBulk lists the source's endpoint and downloads every entry whose
// name matches the file pattern. The first failure abandons the source.
func (r *run) fetchBulk(src domain.RepositorySource, dest string) error {
	pattern, err := compilePattern(src.FilePattern)
	if err != nil {
		return err
	}

	entries, ok := r.cache.Get(src.APIURL)
	if !ok {
		entries, err = r.lister.List(r.ctx, src.APIURL)
		if err != nil {
			return err
		}
		r.cache.Put(src.APIURL, entries)
	}

	var files []domain.ListingEntry
	for _, e := range entries {
		if pattern.MatchString(e.Name) {
			files = append(files, e)
		}
	}
	r.sink.OnLog(fmt.Sprintf("Found %d files", len(files)))

	for _, e := range files {
		name, err := safeName(e.Name)
		if err != nil {
			return err
		}
		if err := r.fetchFile(src, e.DownloadURL, dest, name); err != nil {
			return err
		}
	}
	return nil
}

// fetchFile downloads one file, records it in the manifest and reports progress.
func (r *run) fetchFile(src domain.RepositorySource, url, dest, name string) error {
	domain.LogFile(r.sink, fmt.Sprintf("Downloading %s...", name), name)

	path := filepath.Join(dest, name)
	d, err := r.downloader.Download(r.ctx, url, path, download.Verify(r.verify))
	if err != nil {
		return err
	}
	r.downloaded++
	r.record(src, url, path, d)

	p := float64(r.downloaded) / float64(r.total) * 100
	r.sink.OnProgress(min(p, 99), fmt.Sprintf("Downloaded %s", name))
	return nil
}

// record stores the download in the manifest. Manifest failures are logged
// and never fail the download.
func (r *run) record(src domain.RepositorySource, url, path string, d download.Download) {
	prev, found, err := r.manifest.Get(path)
	if err != nil {
		r.logger.Warn(map[string]any{"path": path, "error": err.Error()}, "manifest lookup failed")
	}
	if found && prev.SHA256 == d.SHA256 {
		r.sink.OnLog(fmt.Sprintf("%s unchanged since %s", filepath.Base(path), prev.FetchedAt.Local().Format(time.DateTime)))
	}

	err = r.manifest.Put(domain.ManifestEntry{
		Path:      path,
		SourceID:  src.ID,
		URL:       url,
		Bytes:     d.Bytes,
		SHA256:    d.SHA256,
		FetchedAt: r.clock.Now().UTC(),
	})
	if err != nil {
		r.logger.Warn(map[string]any{"path": path, "error": err.Error()}, "manifest update failed")
	}
}

// compilePattern compiles a file pattern anchored at the start of the name.
// An empty pattern matches everything.
func compilePattern(p string) (*regexp.Regexp, error) {
	if p == "" {
		p = ".*"
	}
	re, err := regexp.Compile("^(?:" + p + ")")
	if err != nil {
		return nil, errors.Errorf("invalid file pattern %q: %w", p, err)
	}
	return re, nil
}

// safeName rejects listing names that would escape the destination folder.
func safeName(name string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base != name || base == "." || base == ".." {
		return "", errors.Errorf("unsafe file name %q", name)
	}
	return base, nil
}
