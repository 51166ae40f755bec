package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/melih/lighthouse-runner/internal/core/domain"
	"github.com/melih/lighthouse-runner/internal/core/ports"
)

// BuildImage builds contextDir into an image tagged tag. The build runs on
// the daemon while the returned stream is read.
func (a *Adapter) BuildImage(ctx context.Context, contextDir, dockerfile, tag string) (ports.BuildStream, error) {
	// 1. Create Build Context (Tar)
	tar, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create build context: %w", err)
	}

	// 2. Build Docker Image
	resp, err := a.cli.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: dockerfile,
		Remove:     true, // Remove intermediate containers
	})
	if err != nil {
		tar.Close()
		return nil, fmt.Errorf("failed to build image: %w", translate(err))
	}

	return newBuildStream(resp.Body, tar), nil
}

// buildStream decodes the JSON message stream of an image build.
type buildStream struct {
	body    io.ReadCloser
	context io.Closer
	dec     *json.Decoder
}

func newBuildStream(body io.ReadCloser, buildContext io.Closer) *buildStream {
	return &buildStream{body: body, context: buildContext, dec: json.NewDecoder(body)}
}

// Recv skips status and aux messages and returns the next log line or
// build error.
func (s *buildStream) Recv() (domain.BuildEvent, error) {
	for {
		var msg jsonmessage.JSONMessage
		if err := s.dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return domain.BuildEvent{}, io.EOF
			}
			return domain.BuildEvent{}, fmt.Errorf("failed to decode build output: %w", err)
		}

		switch {
		case msg.Error != nil && msg.Error.Message != "":
			return domain.BuildEvent{Error: msg.Error.Message}, nil
		case msg.ErrorMessage != "":
			return domain.BuildEvent{Error: msg.ErrorMessage}, nil
		case msg.Stream != "":
			return domain.BuildEvent{Stream: msg.Stream}, nil
		}
	}
}

func (s *buildStream) Close() error {
	err := s.body.Close()
	if s.context != nil {
		s.context.Close()
	}
	return err
}
