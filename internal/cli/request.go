package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stratus-faas/stratus/internal/client"
	"github.com/stratus-faas/stratus/utils"
)

func invoke(cmd *cobra.Command, args []string) {
	if funcName == "" {
		fmt.Println("missing required --function")
		os.Exit(1)
	}

	paramsMap := make(map[string]interface{})
	for _, rawParam := range params {
		tokens := strings.SplitN(rawParam, ":", 2)
		if len(tokens) < 2 {
			fmt.Printf("invalid parameter: %s\n", rawParam)
			os.Exit(1)
		}
		paramsMap[tokens[0]] = tokens[1]
	}

	request := client.InvocationRequest{
		Params: paramsMap,
		Async:  async,
	}
	invocationBody, err := json.Marshal(request)
	if err != nil {
		fmt.Printf("could not marshal request: %v\n", err)
		os.Exit(2)
	}

	url := fmt.Sprintf("http://%s:%d/invoke/%s", ServerConfig.Host, ServerConfig.Port, funcName)
	resp, err := utils.PostJson(url, invocationBody)
	if err != nil {
		fmt.Printf("Invocation failed: %v\n", err)
		os.Exit(2)
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if async {
		fmt.Printf("Request submitted: %s\n", utils.JsonExtractStringOrDefault(body, "ReqId", "?"))
		return
	}

	if !utils.JsonExtractBool(body, "Success") {
		fmt.Printf("Invocation failed:\n%s\n", string(body))
		os.Exit(3)
	}
	result, err := utils.JsonExtract(body, "Result")
	if err != nil || result == "" {
		fmt.Println(string(body))
		return
	}
	fmt.Println(result)
}

func poll(cmd *cobra.Command, args []string) {
	if reqId == "" {
		fmt.Println("missing required --request")
		os.Exit(1)
	}

	url := fmt.Sprintf("http://%s:%d/poll/%s", ServerConfig.Host, ServerConfig.Port, reqId)
	resp, err := utils.GetJson(url)
	if err != nil {
		fmt.Printf("Poll request failed: %v\n", err)
		os.Exit(2)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	status, err := utils.JsonExtract(body, "Status")
	if err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Printf("Status: %s\n", status)
	if utils.JsonExtractBool(body, "Success") {
		fmt.Println(utils.JsonExtractStringOrDefault(body, "Result", ""))
	}
}

func cancel(cmd *cobra.Command, args []string) {
	if reqId == "" {
		fmt.Println("missing required --request")
		os.Exit(1)
	}

	url := fmt.Sprintf("http://%s:%d/cancel/%s", ServerConfig.Host, ServerConfig.Port, reqId)
	resp, err := utils.PostJson(url, nil)
	if err != nil {
		fmt.Printf("Cancel request failed: %v\n", err)
		os.Exit(2)
	}
	utils.PrintJsonResponse(resp.Body)
}

func prewarm(cmd *cobra.Command, args []string) {
	if funcName == "" {
		fmt.Println("missing required --function")
		os.Exit(1)
	}

	request := client.PrewarmRequest{Function: funcName, Instances: instances}
	requestBody, err := json.Marshal(request)
	if err != nil {
		fmt.Printf("could not marshal request: %v\n", err)
		os.Exit(2)
	}

	url := fmt.Sprintf("http://%s:%d/prewarm", ServerConfig.Host, ServerConfig.Port)
	resp, err := utils.PostJson(url, requestBody)
	if err != nil {
		fmt.Printf("Prewarm request failed: %v\n", err)
		os.Exit(2)
	}
	utils.PrintJsonResponse(resp.Body)
}
