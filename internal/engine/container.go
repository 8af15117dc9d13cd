// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/pdiddy/docbatch/internal/container"
)

const (
	// DefaultImage is used when no image is configured. Its entrypoint must
	// accept docling arguments.
	DefaultImage = "docling:latest"

	inputMount  = "/input"
	outputMount = "/output"
)

// Container runs docling inside an image through a docker or podman runtime.
// The source file's directory is mounted read-only and the destination
// directory read-write.
type Container struct {
	runtime container.Runtime
	image   string
}

// NewContainer returns an engine that runs image with rt.
func NewContainer(rt container.Runtime, image string) *Container {
	if image == "" {
		image = DefaultImage
	}
	return &Container{runtime: rt, image: image}
}

func (c *Container) Name() string {
	return c.runtime.Name() + ":" + c.image
}

// Check verifies the image exists locally.
func (c *Container) Check(context.Context) error {
	if err := c.runtime.ImageExists(c.image); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	return nil
}

// Convert runs one containerised docling invocation.
func (c *Container) Convert(ctx context.Context, req Request) (Response, error) {
	inner := Request{
		Source:    path.Join(inputMount, filepath.Base(req.Source)),
		OutputDir: outputMount,
		Format:    req.Format,
		Verbose:   req.Verbose,
	}
	spec := container.RunSpec{
		Image: c.image,
		Mounts: []container.Mount{
			{Source: filepath.Dir(req.Source), Target: inputMount, ReadOnly: true},
			{Source: req.OutputDir, Target: outputMount},
		},
		Args: Args(inner),
	}

	var out bytes.Buffer
	err := c.runtime.Run(ctx, spec, &out)
	resp := Response{Output: out.String()}
	if err == nil {
		return resp, nil
	}
	resp.ExitCode = -1
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		resp.ExitCode = coded.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return resp, fmt.Errorf("%s: %w", c.Name(), ctxErr)
	}
	return resp, err
}
