package ports

import (
	"context"

	"github.com/melih/lighthouse-runner/internal/core/domain"
)

// BuildStream yields the events of an in-progress image build.
type BuildStream interface {
	// Recv returns the next event, or io.EOF once the build output ends.
	Recv() (domain.BuildEvent, error)
	Close() error
}

// ContainerEngine defines the core operations against a container daemon.
// This interface allows us to switch between Docker, Podman, or Kubernetes
// without changing the business logic.
type ContainerEngine interface {
	// BuildImage starts building contextDir tagged as tag. The returned
	// stream must be drained for the build to complete.
	BuildImage(ctx context.Context, contextDir, dockerfile, tag string) (BuildStream, error)
	// RunContainer creates and starts a detached container and returns its ID.
	RunContainer(ctx context.Context, spec domain.RunSpec) (string, error)
	InspectContainer(ctx context.Context, id string) (domain.ContainerDetails, error)
	// ContainerLogs returns the combined stdout and stderr of a container.
	ContainerLogs(ctx context.Context, id string) (string, error)
	ListContainers(ctx context.Context, filter domain.ContainerFilter) ([]domain.Container, error)
	ListDanglingImages(ctx context.Context) ([]domain.Image, error)
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
	RemoveImage(ctx context.Context, ref string, force bool) error
}
