package footage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"mmoto/internal/services/llm"
)

const maxErrorBody = 512

func getJSON(ctx context.Context, client *http.Client, provider string, req *http.Request, out any) error {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return &ProviderError{Provider: provider, Op: "search", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		perr := &ProviderError{Provider: provider, Op: "search", StatusCode: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(body)))}
		if delay, ok := llm.ParseRetryAfter(resp.Header.Get("Retry-After")); ok {
			perr.RetryAfter = delay
		}
		return perr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Provider: provider, Op: "decode", StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// download streams videoURL into a .part sibling of dest and renames it on success.
func download(ctx context.Context, client *http.Client, provider, videoURL, dest string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", &ProviderError{Provider: provider, Op: "download", Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: provider, Op: "download", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{Provider: provider, Op: "download", StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create footage dir: %w", err)
	}
	partPath := dest + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", partPath, err)
	}
	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(partPath)
		return "", &ProviderError{Provider: provider, Op: "download", Err: copyErr}
	}
	if closeErr != nil {
		_ = os.Remove(partPath)
		return "", fmt.Errorf("close %s: %w", partPath, closeErr)
	}
	if written == 0 {
		_ = os.Remove(partPath)
		return "", &ProviderError{Provider: provider, Op: "download", Err: errors.New("empty body")}
	}
	if err := os.Rename(partPath, dest); err != nil {
		_ = os.Remove(partPath)
		return "", fmt.Errorf("commit download: %w", err)
	}
	return dest, nil
}

func configuredKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && !strings.HasPrefix(key, "your_")
}
