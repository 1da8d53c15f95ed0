package container

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"

	"github.com/containers/podman/v4/libpod/define"
	"github.com/containers/podman/v4/pkg/bindings"
	"github.com/containers/podman/v4/pkg/bindings/containers"
	"github.com/containers/podman/v4/pkg/bindings/images"
	"github.com/containers/podman/v4/pkg/specgen"
	"github.com/stratus-faas/stratus/internal/config"
)

type PodmanFactory struct {
	ctx context.Context
}

func InitPodmanContainerFactory() *PodmanFactory {
	ctx, err := bindings.NewConnection(context.Background(), config.PODMAN_SOCKET)
	if err != nil {
		panic(err)
	}

	podmanFact := &PodmanFactory{ctx}
	cf = podmanFact
	return podmanFact
}

func (cf *PodmanFactory) Create(image string, opts *ContainerOptions) (ContainerID, error) {
	if !cf.HasImage(image) {
		log.Printf("Pulling image: %s", image)
		_, err := images.Pull(cf.ctx, image, new(images.PullOptions))
		if err != nil {
			log.Printf("Could not pull image: %s", image)
			// we do not return here, as a stale copy of the image
			// could still be available locally
		}
	}

	s := specgen.NewSpecGenerator(image, false)
	s.Image = image
	s.Command = opts.Cmd
	s.EnvMerge = opts.Env
	s.Terminal = false
	r, err := containers.CreateWithSpec(cf.ctx, s, new(containers.CreateOptions))
	return r.ID, err
}

// Podman API doesn't support copying files into a container: stage the
// archive on disk and shell out to 'podman cp'.
func (cf *PodmanFactory) CopyToContainer(contID ContainerID, content io.Reader, destPath string) error {
	tmpFile, err := os.CreateTemp("", "stratus-code-*.tar")
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile.Name())

	if _, err := io.Copy(tmpFile, content); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	return exec.Command("podman", "cp", tmpFile.Name(), contID+":"+destPath).Run()
}

func (cf *PodmanFactory) Start(contID ContainerID) error {
	err := containers.Start(cf.ctx, contID, nil)
	if err != nil {
		log.Printf("The container %s could not be started: %v", contID, err)
		return err
	}
	running := define.ContainerStateRunning
	_, err = containers.Wait(cf.ctx, contID, new(containers.WaitOptions).WithCondition([]define.ContainerStatus{running}))
	return err
}

func (cf *PodmanFactory) Destroy(contID ContainerID) error {
	// a zero timeout kills a still-running container
	err := containers.Stop(cf.ctx, contID, new(containers.StopOptions).WithTimeout(0))
	if err != nil {
		log.Printf("The container %s could not be stopped: %v", contID, err)
		return err
	}
	_, err = containers.Remove(cf.ctx, contID, new(containers.RemoveOptions))
	return err
}

func (cf *PodmanFactory) HasImage(image string) bool {
	cmd := fmt.Sprintf("podman images %s | grep -vF REPOSITORY", image)
	_, err := exec.Command("bash", "-c", cmd).Output()
	if err != nil {
		return false
	}

	// We have the image, but we may need to refresh it
	if config.GetBool(config.FACTORY_REFRESH_IMAGES, false) {
		if refreshed, ok := refreshedImages[image]; !ok || !refreshed {
			return false
		}
	}
	return true
}

func (cf *PodmanFactory) GetIPAddress(contID ContainerID) (string, error) {
	contJson, err := containers.Inspect(cf.ctx, contID, new(containers.InspectOptions))
	if err != nil {
		return "", err
	}
	return contJson.NetworkSettings.IPAddress, nil
}

func (cf *PodmanFactory) GetLog(contID ContainerID) (string, error) {
	out, err := exec.Command("podman", "logs", contID).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("can't get the logs: %v", err)
	}
	return string(out), nil
}
