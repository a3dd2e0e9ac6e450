package preflight

import (
	"context"

	"paperling/internal/config"
	"paperling/internal/services/paperless"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := CheckSystemDeps(cfg)
	results = append(results,
		CheckDirectoryAccess("Scratch directory", cfg.Docling.ScratchDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	)

	client, err := paperless.NewFromConfig(cfg)
	if err != nil {
		return append(results,
			Result{Name: "Paperless", Detail: err.Error()},
			Result{Name: "Target tag", Detail: "skipped (Paperless client unavailable)"},
		)
	}
	reach := CheckPaperless(ctx, client)
	results = append(results, reach)
	if !reach.Passed {
		return append(results, Result{Name: "Target tag", Detail: "skipped (Paperless unreachable)"})
	}
	return append(results, CheckTag(ctx, client, cfg.Paperless.TagName))
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
