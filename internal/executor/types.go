package executor

const DEFAULT_EXECUTOR_PORT = 8080

type InvocationRequest struct {
	Command    []string
	Params     map[string]interface{}
	Handler    string
	HandlerDir string
}

type InvocationResult struct {
	Success  bool
	Result   string
	Output   string
	Duration float64
}
