package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
)

// DockerSandbox runs code in a throwaway local container.
type DockerSandbox struct {
	client *client.Client
	image  string
}

// NewDockerSandbox connects to the Docker daemon described by the environment.
func NewDockerSandbox(image string) (*DockerSandbox, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return NewDockerSandboxWithClient(cli, image), nil
}

// NewDockerSandboxWithClient wraps an existing Docker client.
func NewDockerSandboxWithClient(cli *client.Client, image string) *DockerSandbox {
	if image == "" {
		image = "python:3.12-slim"
	}
	return &DockerSandbox{client: cli, image: image}
}

// Run executes code with python -c in a network-less container.
func (d *DockerSandbox) Run(ctx context.Context, code string, timeout time.Duration) (*Execution, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	created, err := d.client.ContainerCreate(ctx,
		&container.Config{
			Image:           d.image,
			Cmd:             []string{"python", "-c", code},
			NetworkDisabled: true,
		},
		&container.HostConfig{
			Resources: container.Resources{Memory: 512 * 1024 * 1024},
		},
		nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		rmCtx, rmCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer rmCancel()
		if err := d.client.ContainerRemove(rmCtx, created.ID, container.RemoveOptions{Force: true}); err != nil {
			log.Warnf("failed to remove container %s: %v", created.ID, err)
		}
	}()

	if err := d.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	var exitCode int64
	statusCh, errCh := d.client.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("execution timed out after %s", timeout)
		}
		return nil, fmt.Errorf("failed waiting for container: %w", err)
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	logs, err := d.client.ContainerLogs(ctx, created.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read container logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return nil, fmt.Errorf("failed to read container logs: %w", err)
	}

	exec := &Execution{}
	if stdout.Len() > 0 {
		exec.Stdout = []string{stdout.String()}
	}
	if stderr.Len() > 0 {
		exec.Stderr = []string{stderr.String()}
	}
	if exitCode != 0 {
		exec.Error = fmt.Sprintf("process exited with status %d", exitCode)
	}
	return exec, nil
}
