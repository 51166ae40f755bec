package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/melih/lighthouse-runner/internal/core/domain"
	"github.com/melih/lighthouse-runner/internal/core/ports"
)

// fakeEngine is an in-memory ContainerEngine. Built images are tracked by
// tag; rebuilding a tag turns the previous image into a dangling one, as
// the Docker daemon does.
type fakeEngine struct {
	mu sync.Mutex

	buildEvents []domain.BuildEvent
	buildErr    error
	runErr      error
	// runState is the state every started container reports.
	runState   domain.ContainerState
	extraPorts []domain.PortBinding
	logs       string

	tags       map[string]string // tag -> image ID
	dangling   []domain.Image
	containers map[string]*fakeContainer
	nextID     int

	removeImageErr map[string]error

	builds            int
	runs              []domain.RunSpec
	danglingLists     int
	removedContainers []string
	removedImages     []string
}

type fakeContainer struct {
	domain.Container
	imageID string
	ports   []domain.PortBinding
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		runState:       domain.StateRunning,
		tags:           make(map[string]string),
		containers:     make(map[string]*fakeContainer),
		removeImageErr: make(map[string]error),
	}
}

func (f *fakeEngine) id(prefix string) string {
	f.nextID++
	return prefix + strconv.Itoa(f.nextID)
}

// addDangling registers an untagged image, optionally used by a container.
func (f *fakeEngine) addDangling(withContainer bool) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	imgID := f.id("sha256:dangling")
	f.dangling = append(f.dangling, domain.Image{ID: imgID})
	if withContainer {
		cid := f.id("c")
		f.containers[cid] = &fakeContainer{
			Container: domain.Container{ID: cid, Name: "old-" + cid, Image: imgID, State: domain.StateRunning},
			imageID:   imgID,
		}
	}
	return imgID
}

// addContainer registers a running container built from a tagged image.
func (f *fakeEngine) addContainer(name, image string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	imgID, ok := f.tags[image]
	if !ok {
		imgID = f.id("sha256:img")
		f.tags[image] = imgID
	}
	cid := f.id("c")
	f.containers[cid] = &fakeContainer{
		Container: domain.Container{ID: cid, Name: name, Image: image, State: domain.StateRunning},
		imageID:   imgID,
	}
	return cid
}

func (f *fakeEngine) hasImage(tag string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tags[tag]
	return ok
}

func (f *fakeEngine) containerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.containers)
}

func (f *fakeEngine) BuildImage(_ context.Context, _, _, tag string) (ports.BuildStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds++
	if f.buildErr != nil {
		return nil, f.buildErr
	}

	failed := slices.ContainsFunc(f.buildEvents, domain.BuildEvent.Fatal)
	if !failed {
		if old, ok := f.tags[tag]; ok {
			f.dangling = append(f.dangling, domain.Image{ID: old})
		}
		f.tags[tag] = f.id("sha256:img")
	}
	return &sliceStream{events: slices.Clone(f.buildEvents)}, nil
}

func (f *fakeEngine) RunContainer(_ context.Context, spec domain.RunSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, spec)
	if f.runErr != nil {
		return "", f.runErr
	}
	for _, c := range f.containers {
		if c.Name == spec.Name {
			return "", fmt.Errorf("create container %s: %w", spec.Name, domain.ErrNameConflict)
		}
	}
	imgID, ok := f.tags[spec.Image]
	if !ok {
		return "", fmt.Errorf("image %s: %w", spec.Image, domain.ErrNotFound)
	}

	cid := f.id("c")
	bindings := append([]domain.PortBinding{{
		ContainerPort: fmt.Sprintf("%d/tcp", spec.ContainerPort),
		HostIP:        "0.0.0.0",
		HostPort:      strconv.Itoa(spec.HostPort),
	}}, f.extraPorts...)
	f.containers[cid] = &fakeContainer{
		Container: domain.Container{ID: cid, Name: spec.Name, Image: spec.Image, State: f.runState},
		imageID:   imgID,
		ports:     bindings,
	}
	return cid, nil
}

func (f *fakeEngine) InspectContainer(_ context.Context, id string) (domain.ContainerDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return domain.ContainerDetails{}, domain.ErrNotFound
	}
	return domain.ContainerDetails{ID: c.ID, Name: c.Name, State: c.State, Ports: slices.Clone(c.ports)}, nil
}

func (f *fakeEngine) ContainerLogs(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[id]; !ok {
		return "", domain.ErrNotFound
	}
	return f.logs, nil
}

func (f *fakeEngine) ListContainers(_ context.Context, filter domain.ContainerFilter) ([]domain.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Container
	for _, c := range f.containers {
		if !filter.All && c.State != domain.StateRunning {
			continue
		}
		if filter.Ancestor != "" && filter.Ancestor != c.Image && filter.Ancestor != c.imageID {
			continue
		}
		if filter.Name != "" && filter.Name != c.Name {
			continue
		}
		out = append(out, c.Container)
	}
	return out, nil
}

func (f *fakeEngine) ListDanglingImages(context.Context) ([]domain.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.danglingLists++
	return slices.Clone(f.dangling), nil
}

func (f *fakeEngine) StopContainer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.State = domain.StateExited
	return nil
}

func (f *fakeEngine) RemoveContainer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.containers, id)
	f.removedContainers = append(f.removedContainers, id)
	return nil
}

func (f *fakeEngine) RemoveImage(_ context.Context, ref string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.removeImageErr[ref]; err != nil {
		return err
	}
	if _, ok := f.tags[ref]; ok {
		delete(f.tags, ref)
		f.removedImages = append(f.removedImages, ref)
		return nil
	}
	for i, img := range f.dangling {
		if img.ID == ref {
			f.dangling = slices.Delete(f.dangling, i, i+1)
			f.removedImages = append(f.removedImages, ref)
			return nil
		}
	}
	return domain.ErrNotFound
}

type sliceStream struct {
	events []domain.BuildEvent
	closed bool
}

func (s *sliceStream) Recv() (domain.BuildEvent, error) {
	if len(s.events) == 0 {
		return domain.BuildEvent{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fakeEngine) containersNamed(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, c := range f.containers {
		if c.Name == name {
			ids = append(ids, id)
		}
	}
	return ids
}
