package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/melih/lighthouse-runner/internal/core/ports"
)

var _ ports.SourceFetcher = (*Adapter)(nil)

// Adapter fetches application source from git repositories.
type Adapter struct {
	// Depth limits the fetched history; 0 clones everything.
	Depth  int
	logger *slog.Logger
}

func NewBuilderAdapter(logger *slog.Logger) *Adapter {
	return &Adapter{Depth: 1, logger: logger.With("component", "git")}
}

// FetchSource shallow-clones repoURL into dir
func (a *Adapter) FetchSource(ctx context.Context, repoURL string, dir string) error {
	a.logger.InfoContext(ctx, fmt.Sprintf("Cloning %s...", repoURL), "dir", dir)

	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:      repoURL,
		Progress: &progressWriter{ctx: ctx, logger: a.logger},
		Depth:    a.Depth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repo: %w", err)
	}
	return nil
}

// progressWriter forwards clone progress lines to the logger.
type progressWriter struct {
	ctx    context.Context
	logger *slog.Logger
}

var _ io.Writer = (*progressWriter)(nil)

func (w *progressWriter) Write(p []byte) (int, error) {
	w.logger.DebugContext(w.ctx, "clone progress: "+string(p))
	return len(p), nil
}
