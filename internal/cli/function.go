package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stratus-faas/stratus/internal/function"
	"github.com/stratus-faas/stratus/utils"
)

func create(cmd *cobra.Command, args []string) {
	if funcName == "" || runtime == "" {
		fmt.Println("missing required --function or --runtime")
		os.Exit(1)
	}

	if runtime == "custom" && customImage == "" {
		fmt.Println("--custom_image is required for the custom runtime")
		os.Exit(1)
	} else if runtime != "custom" && src == "" {
		fmt.Println("--src is required")
		os.Exit(1)
	}

	var encoded string
	if runtime != "custom" {
		srcContent, err := readSourcesAsTar(src)
		if err != nil {
			fmt.Printf("%v\n", err)
			os.Exit(3)
		}
		encoded = base64.StdEncoding.EncodeToString(srcContent)
	}

	request := function.Function{
		Name:            funcName,
		Runtime:         runtime,
		Handler:         handler,
		CustomImage:     customImage,
		TarFunctionCode: encoded,
		MemoryMB:        memory,
		CPUDemand:       cpuDemand,
		MaxConcurrency:  maxConcurrency,
		TimeoutSec:      timeoutSec,
		QueueCapacity:   queueCapacity,
		DesiredWarm:     desiredWarm,
	}
	requestBody, err := json.Marshal(request)
	if err != nil {
		fmt.Printf("could not marshal request: %v\n", err)
		os.Exit(2)
	}

	url := fmt.Sprintf("http://%s:%d/create", ServerConfig.Host, ServerConfig.Port)
	resp, err := utils.PostJson(url, requestBody)
	if err != nil {
		fmt.Printf("Creation request failed: %v\n", err)
		os.Exit(2)
	}
	utils.PrintJsonResponse(resp.Body)
}

func readSourcesAsTar(srcPath string) ([]byte, error) {
	fileInfo, err := os.Stat(srcPath)
	if err != nil {
		return nil, fmt.Errorf("missing source file")
	}

	var tarFileName string

	if fileInfo.IsDir() || !strings.HasSuffix(srcPath, ".tar") {
		file, err := os.CreateTemp("", "stratussource")
		if err != nil {
			return nil, err
		}
		defer os.Remove(file.Name())

		utils.Tar(srcPath, file)
		tarFileName = file.Name()
	} else {
		// this is already a tar file
		tarFileName = srcPath
	}

	return os.ReadFile(tarFileName)
}

func deleteFunction(cmd *cobra.Command, args []string) {
	if funcName == "" {
		fmt.Println("missing required --function")
		os.Exit(1)
	}

	request := function.Function{Name: funcName}
	requestBody, err := json.Marshal(request)
	if err != nil {
		fmt.Printf("could not marshal request: %v\n", err)
		os.Exit(2)
	}

	url := fmt.Sprintf("http://%s:%d/delete", ServerConfig.Host, ServerConfig.Port)
	resp, err := utils.PostJson(url, requestBody)
	if err != nil {
		fmt.Printf("Deletion request failed: %v\n", err)
		os.Exit(2)
	}
	utils.PrintJsonResponse(resp.Body)
}

func list(cmd *cobra.Command, args []string) {
	url := fmt.Sprintf("http://%s:%d/function", ServerConfig.Host, ServerConfig.Port)
	resp, err := utils.GetJson(url)
	if err != nil {
		fmt.Printf("List request failed: %v\n", err)
		os.Exit(2)
	}
	utils.PrintJsonResponse(resp.Body)
}
