package container

import "github.com/stratus-faas/stratus/internal/config"

// RuntimeInfo contains information about a supported function runtime env.
type RuntimeInfo struct {
	Image         string
	InvocationCmd []string
}

const CUSTOM_RUNTIME = "custom"

var refreshedImages = map[string]bool{}

var RuntimeToInfo = getRuntimeInfo()

// Podman requires the prefix 'docker.io' in order to pull from DockerHub
func getRuntimeInfo() map[string]RuntimeInfo {
	containerManager := config.GetString(config.CONTAINER_MANAGER, "docker")
	prefix := ""
	if containerManager == "podman" {
		prefix = "docker.io/"
	}
	return map[string]RuntimeInfo{
		"python310": {prefix + "stratusfaas/runtime-python310", []string{"python", "/entrypoint.py"}},
		"nodejs18":  {prefix + "stratusfaas/runtime-nodejs18", []string{"node", "/entrypoint.js"}},
	}
}
