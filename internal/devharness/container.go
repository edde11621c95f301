// Package devharness spins up a scratch container to exercise the builder
// tool's contract (build, poll, download artifacts) in tests, without talking
// to a real build service. It is test-only infrastructure, never imported by
// the pipeline itself.
package devharness

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// Container wraps the official Docker client for the narrow needs of the
// test harness: run a throwaway container, exec a command in it, tear it
// down.
type Container struct {
	api *client.Client
}

// New connects to the local Docker daemon using the standard environment
// variables (DOCKER_HOST, DOCKER_CERT_PATH, ...).
func New() (*Container, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Container{api: cli}, nil
}

func (c *Container) Close() error { return c.api.Close() }

// CheckDaemon verifies the daemon is reachable before a test suite relies on
// it; callers should skip rather than fail when this errors, since the
// harness is an optional local convenience, not a CI requirement.
func (c *Container) CheckDaemon(ctx context.Context) error {
	if _, err := c.api.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon not reachable: %w", err)
	}
	return nil
}

// Run starts a throwaway container from imageRef with workspace bind-mounted
// at /workspace, and returns its ID.
func (c *Container) Run(ctx context.Context, imageRef, workspace string) (string, error) {
	if reader, err := c.api.ImagePull(ctx, imageRef, image.PullOptions{}); err == nil {
		defer reader.Close()
		_, _ = io.Copy(io.Discard, reader)
	}

	resp, err := c.api.ContainerCreate(ctx,
		&container.Config{
			Image:      imageRef,
			Tty:        true,
			OpenStdin:  true,
			WorkingDir: "/workspace",
			Cmd:        []string{"/bin/sh"},
		},
		&container.HostConfig{
			Binds: []string{fmt.Sprintf("%s:/workspace", workspace)},
		}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := c.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}
	return resp.ID, nil
}

// Exec runs cmd inside containerID and returns combined stdout+stderr.
func (c *Container) Exec(ctx context.Context, containerID string, cmd []string) (string, error) {
	execConfig := container.ExecOptions{Cmd: cmd, AttachStdout: true, AttachStderr: true}

	created, err := c.api.ContainerExecCreate(ctx, containerID, execConfig)
	if err != nil {
		return "", fmt.Errorf("create exec: %w", err)
	}
	attached, err := c.api.ContainerExecAttach(ctx, created.ID, container.ExecStartOptions{})
	if err != nil {
		return "", fmt.Errorf("attach exec: %w", err)
	}
	defer attached.Close()

	var outBuf, errBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&outBuf, &errBuf, attached.Reader); err != nil {
		return "", fmt.Errorf("copy exec output: %w", err)
	}
	return outBuf.String() + errBuf.String(), nil
}

// Stop stops and force-removes containerID.
func (c *Container) Stop(ctx context.Context, containerID string) error {
	_ = c.api.ContainerStop(ctx, containerID, container.StopOptions{})
	return c.api.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}
