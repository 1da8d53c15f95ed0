package container

import (
	"context"
	"fmt"
	"log"

	"github.com/stratus-faas/stratus/internal/executor"
	"github.com/stratus-faas/stratus/internal/function"
	"github.com/stratus-faas/stratus/internal/pool"
)

const HANDLER_DIR = "/app"

// ContextProvisioner backs execution contexts with containers managed by the
// configured factory.
type ContextProvisioner struct{}

func NewProvisioner() *ContextProvisioner {
	return &ContextProvisioner{}
}

// Provision cold-starts a container for f, initialized with the function code.
func (p *ContextProvisioner) Provision(f *function.Function) (string, error) {
	var image string
	if f.Runtime == CUSTOM_RUNTIME {
		image = f.CustomImage
	} else {
		runtime, ok := RuntimeToInfo[f.Runtime]
		if !ok {
			return "", fmt.Errorf("invalid runtime: %s", f.Runtime)
		}
		image = runtime.Image
	}

	return NewContainer(image, f.TarFunctionCode, &ContainerOptions{
		MemoryMB: f.MemoryMB,
		CPUQuota: f.CPUDemand,
	})
}

func (p *ContextProvisioner) Destroy(contID string) error {
	return Destroy(contID)
}

// Execute runs the handler for inv inside contID. A handler-reported failure
// yields ErrHandler; anything else platform-side yields ErrInfrastructure.
// Hitting the ctx deadline is returned unwrapped for the caller to classify.
func (p *ContextProvisioner) Execute(ctx context.Context, contID string, inv *function.Invocation) (*function.ExecutionReport, error) {
	var req *executor.InvocationRequest
	if inv.Fun.Runtime == CUSTOM_RUNTIME {
		req = &executor.InvocationRequest{
			Params: inv.Params,
		}
	} else {
		cmd := RuntimeToInfo[inv.Fun.Runtime].InvocationCmd
		req = &executor.InvocationRequest{
			Command:    cmd,
			Params:     inv.Params,
			Handler:    inv.Fun.Handler,
			HandlerDir: HANDLER_DIR,
		}
	}

	response, err := Execute(ctx, contID, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if logs, logErr := GetLog(contID); logErr == nil && logs != "" {
			log.Printf("Container log for %s:\n%s", contID, logs)
		}
		return nil, fmt.Errorf("%w: %v", pool.ErrInfrastructure, err)
	}

	if !response.Success {
		log.Printf("Handler failure for %s. Output:\n%s", inv, response.Output)
		return nil, fmt.Errorf("%w: %s", pool.ErrHandler, response.Output)
	}

	return &function.ExecutionReport{
		Result:   response.Result,
		Output:   response.Output,
		Duration: response.Duration,
	}, nil
}
