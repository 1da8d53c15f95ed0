package executor

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

const resultFile = "/tmp/_executor_result.json"
const paramsFile = "/tmp/_executor.params"

func readExecutionResult(resultFile string) string {
	content, err := os.ReadFile(resultFile)
	if err != nil {
		log.Printf("%v", err)
		return ""
	}

	return string(content)
}

// InvokeHandler runs the handler process for a single invocation. It is
// served by the executor listening inside every execution context.
func InvokeHandler(w http.ResponseWriter, r *http.Request) {
	reqDecoder := json.NewDecoder(r.Body)
	req := &InvocationRequest{}
	err := reqDecoder.Decode(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	os.Setenv("RESULT_FILE", resultFile)
	os.Setenv("HANDLER", req.Handler)
	os.Setenv("HANDLER_DIR", req.HandlerDir)
	if req.Params == nil {
		os.Setenv("PARAMS_FILE", "")
	} else {
		paramsB, _ := json.Marshal(req.Params)
		err := os.WriteFile(paramsFile, paramsB, 0644)
		if err != nil {
			log.Printf("Could not write parameters to %s", paramsFile)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		os.Setenv("PARAMS_FILE", paramsFile)
	}

	cmd := req.Command
	if cmd == nil || len(cmd) < 1 {
		// this request is either invalid or uses a custom runtime
		// in the latter case, we find the command in the env
		customCmd, ok := os.LookupEnv("CUSTOM_CMD")
		if !ok {
			log.Printf("Invalid request!\n")
			http.Error(w, "no command to execute", http.StatusBadRequest)
			return
		}

		cmd = strings.Split(customCmd, " ")
	}

	// the caller enforces the invocation deadline through the request
	// context; killing the handler process is delegated to it
	var resp *InvocationResult
	start := time.Now()
	execCmd := exec.CommandContext(r.Context(), cmd[0], cmd[1:]...)
	out, err := execCmd.CombinedOutput()
	duration := time.Since(start).Seconds()
	if err != nil {
		log.Printf("handler execution failed with %s\n", err)
		resp = &InvocationResult{Success: false, Output: string(out), Duration: duration}
	} else {
		result := readExecutionResult(resultFile)
		resp = &InvocationResult{Success: true, Result: result, Output: string(out), Duration: duration}
	}

	w.Header().Set("Content-Type", "application/json")
	respBody, _ := json.Marshal(resp)
	w.Write(respBody)
}

// Run starts the executor HTTP server on the default port.
func Run() {
	http.HandleFunc("/invoke", InvokeHandler)
	log.Printf("Executor listening on :%d", DEFAULT_EXECUTOR_PORT)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", DEFAULT_EXECUTOR_PORT), nil); err != nil {
		log.Fatal(err)
	}
}
