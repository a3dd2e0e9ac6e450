package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"paperling/internal/config"
	"paperling/internal/deps"
	"paperling/internal/services/paperless"
	"paperling/internal/workflow"
)

const paperlessCheckTimeout = 10 * time.Second

// Pinger is satisfied by the Paperless client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TagLister is satisfied by the Paperless client.
type TagLister interface {
	ListTags(ctx context.Context) ([]paperless.Tag, error)
}

// CheckPaperless verifies that the API is reachable and the credential is accepted.
// It uses a single attempt with a 10-second timeout.
func CheckPaperless(ctx context.Context, client Pinger) Result {
	const name = "Paperless"

	checkCtx, cancel := context.WithTimeout(ctx, paperlessCheckTimeout)
	defer cancel()

	if err := client.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizePaperlessError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckTag verifies that a tag named tagName exists.
func CheckTag(ctx context.Context, client TagLister, tagName string) Result {
	const name = "Target tag"

	if strings.TrimSpace(tagName) == "" {
		return Result{Name: name, Detail: "tag name not configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, paperlessCheckTimeout)
	defer cancel()

	tags, err := client.ListTags(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("list tags failed (%s)", summarizePaperlessError(err))}
	}
	tag, ok := workflow.FindTag(tags, tagName)
	if !ok {
		return Result{Name: name, Detail: fmt.Sprintf("%q not found among %d tags", tagName, len(tags))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%q resolves to id %d", tagName, tag.ID)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps reports the binaries the daemon executes. Both the daemon
// startup snapshot and the CLI check command use it.
func CheckSystemDeps(cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available || status.Optional,
			Detail: status.Detail,
		})
	}
	return results
}

func summarizePaperlessError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out (Paperless API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out (Paperless API unreachable)"
	}
	var statusErr *paperless.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Sprintf("auth failed (%d, check PAPERLESS_AUTH)", statusErr.StatusCode)
		default:
			return fmt.Sprintf("unexpected status %d", statusErr.StatusCode)
		}
	}
	return err.Error()
}
