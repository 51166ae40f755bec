package http

import (
	"context"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/melih/lighthouse-runner/internal/adapters/workspace"
	"github.com/melih/lighthouse-runner/internal/core/domain"
	"github.com/melih/lighthouse-runner/internal/core/ports"
)

// Executor runs one build-and-run request to completion.
type Executor interface {
	Execute(ctx context.Context, req domain.BuildRequest) domain.Result
}

// imageNamePattern is the subset of image and container names accepted by
// both the image tag and the container name rules of the engine.
var imageNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,127}$`)

// BuildAndRunRequest is the form part of a build-and-run upload.
type BuildAndRunRequest struct {
	ImageName string `json:"image_name" form:"image_name"`
	Endpoint  int    `json:"endpoint" form:"endpoint"`
	RepoURL   string `json:"repo_url" form:"repo_url"`
}

func (r BuildAndRunRequest) validate() error {
	if !imageNamePattern.MatchString(r.ImageName) {
		return &domain.ValidationError{Field: "image_name", Message: "must be lowercase letters, digits, '_', '.' or '-'"}
	}
	if r.Endpoint < 1 || r.Endpoint > 65535 {
		return &domain.ValidationError{Field: "endpoint", Message: "must be a port between 1 and 65535"}
	}
	return nil
}

type BuildHandler struct {
	executor   Executor
	workspaces *workspace.Manager
	fetcher    ports.SourceFetcher
}

func NewBuildHandler(executor Executor, workspaces *workspace.Manager, fetcher ports.SourceFetcher) *BuildHandler {
	return &BuildHandler{executor: executor, workspaces: workspaces, fetcher: fetcher}
}

// BuildAndRun accepts application source, either as a zip upload or a git
// repository URL, plus a Dockerfile, and blocks until the container is up
// or the request has failed.
func (h *BuildHandler) BuildAndRun(c *fiber.Ctx) error {
	var req BuildAndRunRequest
	if err := c.BodyParser(&req); err != nil {
		return sendError(c, &domain.ValidationError{Message: "Invalid request"})
	}

	zipFile, _ := c.FormFile("zip_file")
	recipe, _ := c.FormFile("Dockerfile")

	switch {
	case req.RepoURL == "" && zipFile == nil:
		return sendError(c, &domain.ValidationError{Message: "Missing Zip File"})
	case req.RepoURL == "" && recipe == nil:
		return sendError(c, &domain.ValidationError{Message: "Missing Dockerfile"})
	case zipFile != nil && !strings.EqualFold(filepath.Ext(zipFile.Filename), ".zip"):
		return sendError(c, &domain.ValidationError{Message: "File must be a zip file (.zip)"})
	}
	if err := req.validate(); err != nil {
		return sendError(c, err)
	}

	dir, err := h.workspaces.Create()
	if err != nil {
		return sendError(c, err)
	}

	// The orchestrator owns the workspace once it starts; until then it is
	// removed here on every early return.
	if err := h.populate(c, dir, req, zipFile, recipe); err != nil {
		h.workspaces.Remove(dir)
		return sendError(c, err)
	}
	if !h.workspaces.HasRecipe(dir) {
		h.workspaces.Remove(dir)
		return sendError(c, &domain.ValidationError{Message: "Dockerfile not found in extracted contents"})
	}

	// A dropped client does not abort the build; the result is discarded.
	ctx := context.WithoutCancel(c.UserContext())
	res := h.executor.Execute(ctx, domain.BuildRequest{
		Workspace: dir,
		ImageName: req.ImageName,
		HostPort:  req.Endpoint,
	})
	if !res.OK() {
		return sendResult(c, res)
	}

	return c.JSON(fiber.Map{
		"urls":   res.URLs,
		"status": fiber.StatusOK,
	})
}

func (h *BuildHandler) populate(c *fiber.Ctx, dir string, req BuildAndRunRequest, zipFile, recipe *multipart.FileHeader) error {
	if req.RepoURL != "" {
		if h.fetcher == nil {
			return &domain.ValidationError{Field: "repo_url", Message: "git sources are not enabled"}
		}
		if err := h.fetcher.FetchSource(c.UserContext(), req.RepoURL, dir); err != nil {
			return &domain.ValidationError{Field: "repo_url", Message: err.Error()}
		}
	}

	if zipFile != nil {
		f, err := zipFile.Open()
		if err != nil {
			return err
		}
		defer f.Close()
		if err := h.workspaces.ExtractZip(dir, f, zipFile.Size); err != nil {
			return &domain.ValidationError{Field: "zip_file", Message: err.Error()}
		}
	}

	if recipe != nil {
		f, err := recipe.Open()
		if err != nil {
			return err
		}
		defer f.Close()
		if err := h.workspaces.WriteRecipe(dir, f); err != nil {
			return err
		}
	}
	return nil
}

func sendError(c *fiber.Ctx, err error) error {
	return sendResult(c, domain.Result{Err: err})
}

func sendResult(c *fiber.Ctx, res domain.Result) error {
	status := res.StatusCode()
	body := fiber.Map{
		"error":  res.Err.Error(),
		"status": status,
	}
	if res.Logs != "" {
		body["logs"] = res.Logs
	}
	return c.Status(status).JSON(body)
}
