package container

import (
	"io"

	"github.com/stratus-faas/stratus/internal/config"
)

// A Factory to create and manage containers backing execution contexts.
type Factory interface {
	Create(string, *ContainerOptions) (ContainerID, error)
	CopyToContainer(ContainerID, io.Reader, string) error
	Start(ContainerID) error
	Destroy(ContainerID) error
	HasImage(string) bool
	GetIPAddress(ContainerID) (string, error)
	GetLog(ContainerID) (string, error)
}

// ContainerOptions contains options for container creation.
type ContainerOptions struct {
	Cmd      []string
	Env      []string
	MemoryMB int64
	CPUQuota float64
}

type ContainerID = string

// cf is the container factory for the node
var cf Factory

// InitFactory initializes the configured container factory.
func InitFactory() Factory {
	manager := config.GetString(config.CONTAINER_MANAGER, "docker")
	if manager == "podman" {
		return InitPodmanContainerFactory()
	}
	return InitDockerContainerFactory()
}
