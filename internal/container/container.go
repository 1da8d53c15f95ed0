package container

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/stratus-faas/stratus/internal/executor"
)

// NewContainer creates and starts a new container, loading the function code
// into it.
func NewContainer(image, codeTar string, opts *ContainerOptions) (ContainerID, error) {
	contID, err := cf.Create(image, opts)
	if err != nil {
		log.Printf("Failed container creation")
		return "", err
	}

	if codeTar != "" {
		decodedCode, _ := base64.StdEncoding.DecodeString(codeTar)
		err = cf.CopyToContainer(contID, bytes.NewReader(decodedCode), "/app/")
		if err != nil {
			log.Printf("Failed code copy")
			return "", err
		}
	}

	err = cf.Start(contID)
	if err != nil {
		return "", err
	}

	return contID, nil
}

// Execute interacts with the executor running in the container to invoke the
// handler through a HTTP request. The request is bound to ctx, so canceling
// it aborts the invocation.
func Execute(ctx context.Context, contID ContainerID, req *executor.InvocationRequest) (*executor.InvocationResult, error) {
	ipAddr, err := cf.GetIPAddress(contID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve IP address for container: %v", err)
	}

	postBody, _ := json.Marshal(req)
	url := fmt.Sprintf("http://%s:%d/invoke", ipAddr, executor.DEFAULT_EXECUTOR_PORT)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(postBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to executor failed: %w", err)
	}
	defer resp.Body.Close()

	d := json.NewDecoder(resp.Body)
	response := &executor.InvocationResult{}
	err = d.Decode(response)
	if err != nil {
		return nil, fmt.Errorf("parsing executor response failed: %v", err)
	}

	return response, nil
}

// GetLog retrieves the container output, used to diagnose execution failures.
func GetLog(id ContainerID) (string, error) {
	return cf.GetLog(id)
}

func Destroy(id ContainerID) error {
	return cf.Destroy(id)
}
