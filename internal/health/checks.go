package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
)

// VaultRoot returns a checker that verifies the vault root exists and is a
// directory. A missing vault means notes cannot be written, so the service
// is not ready.
func VaultRoot(root string) Checker {
	return Checker{
		Name: "vault",
		Check: func(_ context.Context) error {
			info, err := os.Stat(root)
			if err != nil {
				return fmt.Errorf("stat %s: %w", root, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", root)
			}
			return nil
		},
	}
}

// Endpoint returns a checker that probes an HTTP dependency, typically the
// transcription service. Any response below 500 counts as reachable; error
// statuses in the 4xx range still prove the service is up.
func Endpoint(name, url string, client *http.Client) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("%s returned %d", url, resp.StatusCode)
			}
			return nil
		},
	}
}

// Ping wraps an arbitrary probe function, e.g. a database pool's Ping, as a
// named checker.
func Ping(name string, fn func(ctx context.Context) error) Checker {
	return Checker{Name: name, Check: fn}
}
