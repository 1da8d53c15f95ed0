package client

// InvocationRequest is the body accepted by the /invoke endpoint.
type InvocationRequest struct {
	Params map[string]interface{}
	Async  bool
}

// PrewarmRequest is the body accepted by the /prewarm endpoint.
type PrewarmRequest struct {
	Function  string
	Instances int
}
