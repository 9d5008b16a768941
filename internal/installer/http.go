package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/curator/internal/registry"
	"github.com/potooio/curator/internal/types"
)

const (
	defaultDownloadTimeout = 30 * time.Minute
	defaultArtifactName    = "release.bin"
	copyChunkSize          = 32 * 1024
)

// HTTPInstaller downloads release artifacts into a local directory.
type HTTPInstaller struct {
	client   *http.Client
	dir      string
	registry registry.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// HTTPInstallerConfig configures an HTTPInstaller.
type HTTPInstallerConfig struct {
	// Dir is the root install directory.
	Dir string
	// TimeoutSeconds bounds one download; zero selects 30 minutes.
	TimeoutSeconds int
	// AuthToken is sent as a bearer token when non-empty.
	AuthToken string
}

// NewHTTPInstaller creates an installer writing under cfg.Dir and recording
// installs in reg.
func NewHTTPInstaller(cfg HTTPInstallerConfig, reg registry.Registry, logger *zap.Logger) (*HTTPInstaller, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("install directory is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = defaultDownloadTimeout
	}

	client := &http.Client{Timeout: timeout}
	if cfg.AuthToken != "" {
		client.Transport = &bearerTransport{token: cfg.AuthToken, base: http.DefaultTransport}
	}

	return &HTTPInstaller{
		client:   client,
		dir:      cfg.Dir,
		registry: reg,
		logger:   logger.Named("http-installer"),
		now:      time.Now,
	}, nil
}

// Install downloads release.DownloadURL to <dir>/<entryID>/<releaseID>/<name>
// and records the install. Skips the download if the artifact is already present.
func (h *HTTPInstaller) Install(ctx context.Context, entry *types.EntryDetails, release *types.Release, progress types.ProgressFunc) error {
	if entry == nil || release == nil {
		return fmt.Errorf("entry and release are required")
	}
	if release.DownloadURL == "" {
		return fmt.Errorf("release %d of entry %d has no download URL", release.ID, entry.ID)
	}

	destDir := filepath.Join(h.dir, strconv.FormatInt(entry.ID, 10), strconv.FormatInt(release.ID, 10))
	dest := filepath.Join(destDir, artifactName(release.DownloadURL))

	if _, err := os.Stat(dest); err == nil {
		h.logger.Info("Using existing artifact", zap.String("path", dest))
	} else {
		if err := h.download(ctx, release, destDir, dest, progress); err != nil {
			return err
		}
	}

	if err := h.registry.Record(types.InstalledEntry{
		EntryID:     entry.ID,
		ReleaseID:   release.ID,
		InstalledAt: h.now().UTC(),
		Path:        dest,
	}); err != nil {
		return fmt.Errorf("record install: %w", err)
	}
	return nil
}

func (h *HTTPInstaller) download(ctx context.Context, release *types.Release, destDir, dest string, progress types.ProgressFunc) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create install dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, release.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "curator/v1")

	h.logger.Info("Downloading release",
		zap.Int64("release_id", release.ID),
		zap.String("version", release.Version),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned HTTP %d", resp.StatusCode)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = release.Size
	}

	// Write to temp file then rename atomically
	tmp, err := os.CreateTemp(destDir, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, copyErr := copyWithProgress(ctx, tmp, resp.Body, total, progress)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("write artifact: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", closeErr)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename artifact: %w", err)
	}

	h.logger.Info("Download complete", zap.String("path", dest))
	return nil
}

// copyWithProgress copies src to dst in chunks, reporting after each chunk
// and stopping as soon as ctx is done.
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress types.ProgressFunc) (int64, error) {
	buf := make([]byte, copyChunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			downloadBytesTotal.Add(float64(n))
			if progress != nil {
				progress(types.StreamProgress{BytesRead: written, TotalBytes: total})
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// artifactName derives a file name from the download URL.
func artifactName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultArtifactName
	}
	name := path.Base(u.Path)
	if name == "." || name == ".." || name == "/" || name == "" {
		return defaultArtifactName
	}
	return name
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(r)
}
