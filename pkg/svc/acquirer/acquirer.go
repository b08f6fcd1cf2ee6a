// Package acquirer downloads external tool binaries into a local tools directory.
package acquirer

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/devantler-tech/standalone/pkg/client/netretry"
	"github.com/devantler-tech/standalone/pkg/cmd/parallel"
	"github.com/devantler-tech/standalone/pkg/svc/provisionerr"
	"github.com/devantler-tech/standalone/pkg/utils/notify"
	"github.com/klauspost/compress/gzip"
)

// Outcome reports what Ensure did.
type Outcome int

const (
	// NotAcquired is returned alongside an error.
	NotAcquired Outcome = iota
	// Installed means the binary was downloaded.
	Installed
	// AlreadyPresent means the target path existed and nothing was fetched.
	AlreadyPresent
)

func (o Outcome) String() string {
	switch o {
	case Installed:
		return "installed"
	case AlreadyPresent:
		return "already present"
	default:
		return "not acquired"
	}
}

const executableMode = 0o755

var errMemberNotFound = errors.New("archive member not found")

// Acquirer fetches binaries over HTTPS.
type Acquirer struct {
	client    *http.Client
	out       io.Writer
	retryOpts []netretry.Option
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Acquirer) { a.client = client }
}

// WithOutput sets where progress and retry messages are written.
func WithOutput(out io.Writer) Option {
	return func(a *Acquirer) { a.out = out }
}

// WithRetry overrides the download retry policy.
func WithRetry(opts ...netretry.Option) Option {
	return func(a *Acquirer) { a.retryOpts = opts }
}

// New returns an Acquirer.
func New(opts ...Option) *Acquirer {
	acq := &Acquirer{
		client: &http.Client{Timeout: 5 * time.Minute},
		out:    io.Discard,
	}
	for _, opt := range opts {
		opt(acq)
	}

	return acq
}

// Present reports whether the binary's target path exists.
func Present(bin Binary) bool {
	_, err := os.Stat(bin.Path)

	return err == nil
}

// Ensure makes sure bin.Path exists. An existing path is never refreshed and
// causes no network traffic. Downloads land in a temporary file next to the
// target and are renamed into place once complete and executable.
func (a *Acquirer) Ensure(ctx context.Context, bin Binary) (Outcome, error) {
	return a.ensure(ctx, bin, a.out)
}

func (a *Acquirer) ensure(ctx context.Context, bin Binary, out io.Writer) (Outcome, error) {
	if Present(bin) {
		return AlreadyPresent, nil
	}

	err := a.install(ctx, bin, out)
	if err != nil {
		return NotAcquired, &provisionerr.AcquisitionError{Name: bin.Name, URL: bin.URL, Err: err}
	}

	return Installed, nil
}

// EnsureAll runs Ensure for every binary concurrently and returns the outcome per name.
func (a *Acquirer) EnsureAll(ctx context.Context, binaries []Binary) (map[string]Outcome, error) {
	results := parallel.NewResults[string, Outcome]()
	tasks := make([]parallel.Task, 0, len(binaries))
	out := parallel.NewSyncWriter(a.out)

	for _, bin := range binaries {
		tasks = append(tasks, func(ctx context.Context) error {
			outcome, err := a.ensure(ctx, bin, out)
			if err != nil {
				return err
			}

			results.Set(bin.Name, outcome)

			return nil
		})
	}

	err := parallel.NewExecutor(int64(len(binaries))).Execute(ctx, tasks...)
	if err != nil {
		return nil, fmt.Errorf("ensure binaries: %w", err)
	}

	outcomes := make(map[string]Outcome, len(binaries))
	for _, bin := range binaries {
		outcome, _ := results.Get(bin.Name)
		outcomes[bin.Name] = outcome
	}

	return outcomes, nil
}

func (a *Acquirer) install(ctx context.Context, bin Binary, out io.Writer) error {
	dir := filepath.Dir(bin.Path)

	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return fmt.Errorf("create tools directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(bin.Path)+"-*.partial")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	tmpPath := tmp.Name()
	committed := false

	defer func() {
		_ = tmp.Close()

		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	notify.Activityf(out, "downloading %s", bin.Name)

	retryOpts := append([]netretry.Option{
		netretry.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			notify.Warningf(out, "%s download attempt %d failed, retrying in %s: %v", bin.Name, attempt, wait, err)
		}),
	}, a.retryOpts...)

	err = netretry.Do(ctx, func(ctx context.Context) error {
		return a.download(ctx, bin, tmp)
	}, retryOpts...)
	if err != nil {
		return err
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close temporary file: %w", err)
	}

	err = os.Chmod(tmpPath, executableMode)
	if err != nil {
		return fmt.Errorf("set executable bit: %w", err)
	}

	err = os.Rename(tmpPath, bin.Path)
	if err != nil {
		return fmt.Errorf("move into place: %w", err)
	}

	committed = true

	return nil
}

// download writes the executable into dst, restarting from an empty file on every attempt.
func (a *Acquirer) download(ctx context.Context, bin Binary, dst *os.File) error {
	_, err := dst.Seek(0, io.SeekStart)
	if err != nil {
		return fmt.Errorf("rewind temporary file: %w", err)
	}

	err = dst.Truncate(0)
	if err != nil {
		return fmt.Errorf("truncate temporary file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bin.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", bin.URL, err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &netretry.StatusError{URL: bin.URL, StatusCode: resp.StatusCode}
	}

	if bin.ArchiveMember == "" {
		_, err = io.Copy(dst, resp.Body)
		if err != nil {
			return fmt.Errorf("write %s: %w", bin.Name, err)
		}

		return nil
	}

	return extractMember(resp.Body, bin.ArchiveMember, dst)
}

func extractMember(archive io.Reader, member string, dst io.Writer) error {
	gz, err := gzip.NewReader(archive)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}

	defer func() { _ = gz.Close() }()

	reader := tar.NewReader(gz)

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s", errMemberNotFound, member)
		}

		if err != nil {
			return fmt.Errorf("read tar stream: %w", err)
		}

		if header.Typeflag != tar.TypeReg || path.Clean(header.Name) != path.Clean(member) {
			continue
		}

		_, err = io.Copy(dst, reader) //nolint:gosec // member size is bounded by the pinned release archive
		if err != nil {
			return fmt.Errorf("extract %s: %w", member, err)
		}

		return nil
	}
}
