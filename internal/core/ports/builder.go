package ports

import "context"

// SourceFetcher populates a workspace with application source code.
type SourceFetcher interface {
	// FetchSource clones a repository into dir, which must be empty.
	FetchSource(ctx context.Context, repoURL string, dir string) error
}
