package docker

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/melih/lighthouse-runner/internal/core/domain"
	"github.com/melih/lighthouse-runner/internal/core/ports"
)

var _ ports.ContainerEngine = (*Adapter)(nil)

// Adapter implements ports.ContainerEngine using Docker SDK
type Adapter struct {
	cli         *client.Client
	stopTimeout time.Duration
}

// NewAdapter creates a new Docker adapter instance
func NewAdapter() (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, stopTimeout: 10 * time.Second}, nil
}

// Ping checks that the daemon is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	if _, err := a.cli.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach docker daemon: %w", translate(err))
	}
	return nil
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	return a.cli.Close()
}

// ListContainers returns containers matching filter
func (a *Adapter) ListContainers(ctx context.Context, filter domain.ContainerFilter) ([]domain.Container, error) {
	args := filters.NewArgs()
	if filter.Ancestor != "" {
		args.Add("ancestor", filter.Ancestor)
	}
	if filter.Name != "" {
		args.Add("name", "^/"+filter.Name+"$")
	}

	containers, err := a.cli.ContainerList(ctx, container.ListOptions{All: filter.All, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", translate(err))
	}

	result := make([]domain.Container, 0, len(containers))
	for _, c := range containers {
		// Use the first name if available, remove slash
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		result = append(result, domain.Container{
			ID:     c.ID,
			Name:   name,
			Image:  c.Image,
			Status: c.Status,
			State:  domain.ContainerState(c.State),
		})
	}
	return result, nil
}

// RunContainer creates and starts a detached container publishing
// spec.ContainerPort on spec.HostPort
func (a *Adapter) RunContainer(ctx context.Context, spec domain.RunSpec) (string, error) {
	port, err := nat.NewPort("tcp", strconv.Itoa(spec.ContainerPort))
	if err != nil {
		return "", fmt.Errorf("invalid container port %d: %w", spec.ContainerPort, err)
	}

	// 1. Create Container
	resp, err := a.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        spec.Image,
			ExposedPorts: nat.PortSet{port: struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				port: []nat.PortBinding{{HostPort: strconv.Itoa(spec.HostPort)}},
			},
		},
		nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", translateCreate(err))
	}

	// 2. Start Container
	if err := a.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return resp.ID, fmt.Errorf("failed to start container: %w", translate(err))
	}

	return resp.ID, nil
}

// InspectContainer returns the live state and published ports of a container
func (a *Adapter) InspectContainer(ctx context.Context, id string) (domain.ContainerDetails, error) {
	info, err := a.cli.ContainerInspect(ctx, id)
	if err != nil {
		return domain.ContainerDetails{}, fmt.Errorf("failed to inspect container: %w", translate(err))
	}

	details := domain.ContainerDetails{
		ID:   info.ID,
		Name: strings.TrimPrefix(info.Name, "/"),
	}
	if info.State != nil {
		details.State = domain.ContainerState(info.State.Status)
	}
	if info.NetworkSettings != nil {
		details.Ports = portBindings(info.NetworkSettings.Ports)
	}
	return details, nil
}

// portBindings keeps the first host binding of each published port, sorted
// by container port.
func portBindings(pm nat.PortMap) []domain.PortBinding {
	keys := make([]nat.Port, 0, len(pm))
	for p, bindings := range pm {
		if len(bindings) > 0 {
			keys = append(keys, p)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Int() != keys[j].Int() {
			return keys[i].Int() < keys[j].Int()
		}
		return keys[i].Proto() < keys[j].Proto()
	})

	out := make([]domain.PortBinding, 0, len(keys))
	for _, p := range keys {
		b := pm[p][0]
		out = append(out, domain.PortBinding{
			ContainerPort: string(p),
			HostIP:        b.HostIP,
			HostPort:      b.HostPort,
		})
	}
	return out
}

// ContainerLogs returns the stdout and stderr of a container
func (a *Adapter) ContainerLogs(ctx context.Context, id string) (string, error) {
	rc, err := a.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to read container logs: %w", translate(err))
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, rc); err != nil {
		return "", fmt.Errorf("failed to demultiplex container logs: %w", err)
	}
	return buf.String(), nil
}

// ListDanglingImages returns untagged images
func (a *Adapter) ListDanglingImages(ctx context.Context) ([]domain.Image, error) {
	images, err := a.cli.ImageList(ctx, types.ImageListOptions{
		Filters: filters.NewArgs(filters.Arg("dangling", "true")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", translate(err))
	}

	result := make([]domain.Image, 0, len(images))
	for _, img := range images {
		result = append(result, domain.Image{ID: img.ID, Tags: img.RepoTags})
	}
	return result, nil
}

// StopContainer stops a running container
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	// Timeout can be configurable, but keeping it simple for now
	ctx, cancel := context.WithTimeout(ctx, a.stopTimeout+5*time.Second)
	defer cancel()
	timeout := int(a.stopTimeout.Seconds())
	if err := a.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", translate(err))
	}
	return nil
}

// RemoveContainer removes a container and its anonymous volumes
func (a *Adapter) RemoveContainer(ctx context.Context, id string) error {
	err := a.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil {
		return fmt.Errorf("failed to remove container: %w", translate(err))
	}
	return nil
}

// RemoveImage removes an image by tag or ID
func (a *Adapter) RemoveImage(ctx context.Context, ref string, force bool) error {
	_, err := a.cli.ImageRemove(ctx, ref, types.ImageRemoveOptions{Force: force, PruneChildren: true})
	if err != nil {
		return fmt.Errorf("failed to remove image: %w", translate(err))
	}
	return nil
}
