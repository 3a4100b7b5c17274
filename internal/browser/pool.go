package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
)

// DefaultImage bundles Chrome with a CDP endpoint on port 3000
const DefaultImage = "browserless/chrome:latest"

// Container is one disposable containerized browser
type Container struct {
	ID     string
	Port   string
	CDPURL string
}

// Pool launches throwaway browser containers over the docker API. Each
// login attempt gets its own container; nothing is shared between them.
type Pool struct {
	client *client.Client
	image  string
}

// NewPool connects to the docker daemon from the environment
func NewPool(img string) (*Pool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("browser: docker client: %w", err)
	}
	if img == "" {
		img = DefaultImage
	}
	return &Pool{client: cli, image: img}, nil
}

// Launch starts a fresh browser container and waits until its CDP endpoint
// answers. The caller must Stop the container when done with it.
func (p *Pool) Launch(ctx context.Context) (*Container, error) {
	id := uuid.NewString()

	containerConfig := &container.Config{
		Image: p.image,
		Labels: map[string]string{
			"managed-by": "ssokeeper",
			"attempt-id": id,
		},
		Env: []string{
			"CONNECTION_TIMEOUT=-1",
			"MAX_CONCURRENT_SESSIONS=1",
			"PREBOOT_CHROME=true",
			"KEEP_ALIVE=true",
			"EXIT_ON_HEALTH_FAILURE=false",
		},
		ExposedPorts: nat.PortSet{
			"3000/tcp": struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			"3000/tcp": []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: "0",
				},
			},
		},
		AutoRemove: false,
	}

	resp, err := p.client.ContainerCreate(
		ctx,
		containerConfig,
		hostConfig,
		nil,
		nil,
		"ssokeeper-"+id[:8],
	)
	if err != nil {
		return nil, fmt.Errorf("browser: create container: %w", err)
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = p.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("browser: start container: %w", err)
	}

	inspect, err := p.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		_ = p.Stop(ctx, resp.ID)
		return nil, fmt.Errorf("browser: inspect container: %w", err)
	}

	bindings := inspect.NetworkSettings.Ports["3000/tcp"]
	if len(bindings) == 0 {
		_ = p.Stop(ctx, resp.ID)
		return nil, fmt.Errorf("browser: container %s has no published CDP port", resp.ID[:12])
	}
	port := bindings[0].HostPort

	if err := p.waitReady(ctx, port); err != nil {
		_ = p.Stop(ctx, resp.ID)
		return nil, fmt.Errorf("browser: container not ready: %w", err)
	}

	return &Container{
		ID:     resp.ID,
		Port:   port,
		CDPURL: fmt.Sprintf("ws://127.0.0.1:%s", port),
	}, nil
}

// Stop tears a container down and removes it
func (p *Pool) Stop(ctx context.Context, containerID string) error {
	timeout := 10
	if err := p.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("browser: stop container: %w", err)
	}
	if err := p.client.ContainerRemove(ctx, containerID, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("browser: remove container: %w", err)
	}
	return nil
}

// EnsureImage pulls the browser image unless it is already present
func (p *Pool) EnsureImage(ctx context.Context) error {
	images, err := p.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return err
	}
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == p.image {
				return nil
			}
		}
	}

	reader, err := p.client.ImagePull(ctx, p.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("browser: pull %s: %w", p.image, err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

// Close releases the docker client
func (p *Pool) Close() error {
	return p.client.Close()
}

// waitReady polls the container's /json/version endpoint until the CDP
// server answers
func (p *Pool) waitReady(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://127.0.0.1:%s/json/version", port)
	maxRetries := 20

	for i := 0; i < maxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				// give the websocket listener a beat to come up
				time.Sleep(500 * time.Millisecond)
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("cdp endpoint on port %s never answered", port)
}
