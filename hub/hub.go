// Package hub downloads tagger models and label tables from a Hugging Face
// compatible endpoint and caches them on disk.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "https://huggingface.co"
	DefaultRepo     = "SmilingWolf/wd-vit-tagger-v3"
	ModelFile       = "model.onnx"
	LabelFile       = "selected_tags.csv"

	defaultTimeout = 10 * time.Minute
)

// Fetcher downloads repository files once and serves them from Dir afterward.
type Fetcher struct {
	Dir        string       // cache root, required
	Endpoint   string       // default: DefaultEndpoint
	HTTPClient *http.Client // default: http.DefaultClient
	UserAgent  string       // default: "go-wdtag/1.0"
	Token      string       // optional bearer token for gated repositories
	Timeout    time.Duration
}

func (f *Fetcher) defaults() {
	if f.Endpoint == "" {
		f.Endpoint = DefaultEndpoint
	}
	if f.HTTPClient == nil {
		f.HTTPClient = http.DefaultClient
	}
	if f.UserAgent == "" {
		f.UserAgent = "go-wdtag/1.0"
	}
	if f.Timeout <= 0 {
		f.Timeout = defaultTimeout
	}
}

// Path returns where filename from repo is cached.
func (f *Fetcher) Path(repo, filename string) string {
	return filepath.Join(f.Dir, strings.ReplaceAll(repo, "/", "--"), filename)
}

// Fetch returns the cached path of filename from repo, downloading it first
// when it is not cached yet.
func (f *Fetcher) Fetch(ctx context.Context, repo, filename string) (string, error) {
	f.defaults()
	if f.Dir == "" {
		return "", errors.New("hub: cache dir is required")
	}
	dst := f.Path(repo, filename)
	if info, err := os.Stat(dst); err == nil && info.Size() > 0 {
		return dst, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	url := fmt.Sprintf("%s/%s/resolve/main/%s", strings.TrimRight(f.Endpoint, "/"), repo, filename)
	slog.Info("wdtag: downloading", "url", url, "dest", dst)
	if err := f.download(ctx, url, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// FetchModel fetches both the model and its label table.
func (f *Fetcher) FetchModel(ctx context.Context, repo string) (modelPath, labelsPath string, err error) {
	if repo == "" {
		repo = DefaultRepo
	}
	if labelsPath, err = f.Fetch(ctx, repo, LabelFile); err != nil {
		return "", "", err
	}
	if modelPath, err = f.Fetch(ctx, repo, ModelFile); err != nil {
		return "", "", err
	}
	return modelPath, labelsPath, nil
}

func (f *Fetcher) download(ctx context.Context, url, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := f.HTTPClient.Do(req) //nolint:gosec // G107: endpoint and repo come from local configuration
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("store %s: %w", dst, err)
	}
	return nil
}
