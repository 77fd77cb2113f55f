package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"tierwatch/internal/entity"
	"tierwatch/internal/services"
)

// FtrackProbe is the part of the ftrack client the reachability check uses.
type FtrackProbe interface {
	ServerInfo(ctx context.Context) (map[string]any, error)
	Location(ctx context.Context, id string) (entity.Entity, error)
}

// CheckFtrack verifies the server answers and the configured location exists.
func CheckFtrack(ctx context.Context, probe FtrackProbe, locationID string) Result {
	const name = "ftrack"

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	info, err := probe.ServerInfo(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	version, _ := info["version"].(string)

	loc, err := probe.Location(checkCtx, locationID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return Result{Name: name, Detail: fmt.Sprintf("location %s not found", locationID)}
		}
		return Result{Name: name, Detail: summarizeError(err)}
	}

	detail := fmt.Sprintf("Reachable, location %q", loc.Name)
	if version != "" {
		detail = fmt.Sprintf("Reachable (server %s), location %q", version, loc.Name)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDirectoryAccess verifies that the directory exists and is readable,
// and writable when write is set.
func CheckDirectoryAccess(name, path string, write bool) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
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
	mode, label := uint32(unix.R_OK|unix.X_OK), "read ok"
	if write {
		mode, label = unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok"
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, label)}
}

// summarizeError produces a human-readable summary for connectivity failures.
func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (server unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (server unreachable)"
	}
	return err.Error()
}
