package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxBytes caps the prefix fetched from a remote audio URL. The
// provider only needs a bounded amount of signal, and podcast files can
// run to hundreds of megabytes.
const DefaultMaxBytes = 10 * 1024 * 1024

// Some podcast CDNs return 403 to non-browser agents.
const downloadUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36"

// ErrEmptyDownload means the remote fetch produced no bytes.
var ErrEmptyDownload = errors.New("downloaded audio is empty")

// Fetcher downloads a bounded prefix of a remote audio file to a temp file.
type Fetcher struct {
	maxBytes   int64
	debugDir   string
	httpClient *http.Client
}

// NewFetcher creates a fetcher capped at maxBytes per download (0 means
// DefaultMaxBytes). debugDir, if non-empty, receives a copy of every
// downloaded prefix for inspection.
func NewFetcher(maxBytes int64, debugDir string) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		maxBytes: maxBytes,
		debugDir: debugDir,
		httpClient: &http.Client{
			Timeout: 30 * time.Minute, // large-file transfer over slow CDNs
		},
	}
}

// Download fetches at most maxBytes of audioURL into a temp file and
// returns its path. The caller owns the file and must remove it.
func (f *Fetcher) Download(ctx context.Context, audioURL string) (string, error) {
	tmpFile, err := os.CreateTemp("", "podcast-"+uuid.New().String()+"-*.mp3")
	if err != nil {
		return "", err
	}
	tmpPath := tmpFile.Name()

	if err := f.downloadTo(ctx, audioURL, tmpFile); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	info, err := os.Stat(tmpPath)
	if err != nil || info.Size() == 0 {
		os.Remove(tmpPath)
		return "", ErrEmptyDownload
	}

	f.saveDebugCopy(tmpPath, "original_")
	log.Printf("[audio] downloaded %.2fMB prefix from %s", float64(info.Size())/(1024*1024), audioURL)
	return tmpPath, nil
}

func (f *Fetcher) downloadTo(ctx context.Context, audioURL string, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("User-Agent", downloadUserAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", f.maxBytes-1))

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", audioURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("fetch %s: unexpected status %d", audioURL, resp.StatusCode)
	}

	// Copy in bounded chunks and stop at the cap even when the server
	// ignored the Range header and streams the whole file.
	buf := make([]byte, 8192)
	var total int64
	for total < f.maxBytes {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if int64(n) > f.maxBytes-total {
				n = int(f.maxBytes - total)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}
			total += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read audio: %w", readErr)
		}
	}
	return nil
}

// saveDebugCopy drops a copy of path into the debug directory. Failures
// are logged only; debug artifacts are an operational aid, not a
// correctness requirement.
func (f *Fetcher) saveDebugCopy(path, prefix string) {
	if f.debugDir == "" {
		return
	}
	copyToDebugDir(f.debugDir, path, prefix)
}

func copyToDebugDir(debugDir, path, prefix string) {
	if err := os.MkdirAll(debugDir, 0755); err != nil {
		log.Printf("[audio] debug dir: %v", err)
		return
	}
	src, err := os.Open(path)
	if err != nil {
		log.Printf("[audio] debug copy: %v", err)
		return
	}
	defer src.Close()

	dstPath := filepath.Join(debugDir, prefix+filepath.Base(path))
	dst, err := os.Create(dstPath)
	if err != nil {
		log.Printf("[audio] debug copy: %v", err)
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		log.Printf("[audio] debug copy: %v", err)
		return
	}
	log.Printf("[audio] saved debug copy to %s", dstPath)
}
