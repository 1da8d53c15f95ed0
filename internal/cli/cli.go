package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RemoteServerConf points the CLI at a Stratus node.
type RemoteServerConf struct {
	Host string
	Port int
}

var ServerConfig RemoteServerConf

var rootCmd = &cobra.Command{
	Use:   "stratus-cli",
	Short: "CLI utility for Stratus",
	Long:  `CLI utility to interact with a Stratus function runtime node.`,
}

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Invokes a function",
	Run:   invoke,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Registers a new function",
	Run:   create,
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Deletes a function",
	Run:   deleteFunction,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists registered functions",
	Run:   list,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows the node status",
	Run:   status,
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Polls the result of an asynchronous invocation",
	Run:   poll,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancels a queued or running invocation",
	Run:   cancel,
}

var prewarmCmd = &cobra.Command{
	Use:   "prewarm",
	Short: "Pre-warms execution contexts for a function",
	Run:   prewarm,
}

var funcName, runtime, handler, customImage, src, reqId string
var memory int64
var cpuDemand float64
var maxConcurrency, timeoutSec, queueCapacity, desiredWarm, instances int
var params []string
var async bool

func Init() {
	rootCmd.PersistentFlags().StringVarP(&ServerConfig.Host, "host", "H", ServerConfig.Host, "remote Stratus host")
	rootCmd.PersistentFlags().IntVarP(&ServerConfig.Port, "port", "P", ServerConfig.Port, "remote Stratus port")

	rootCmd.AddCommand(invokeCmd)
	invokeCmd.Flags().StringVarP(&funcName, "function", "f", "", "name of the function")
	invokeCmd.Flags().StringSliceVarP(&params, "param", "p", nil, "Function parameter: <name>:<value>")
	invokeCmd.Flags().BoolVarP(&async, "async", "a", false, "asynchronous invocation")

	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&funcName, "function", "f", "", "name of the function")
	createCmd.Flags().StringVarP(&runtime, "runtime", "r", "python310", "runtime for the function")
	createCmd.Flags().StringVarP(&handler, "handler", "", "", "function handler")
	createCmd.Flags().StringVarP(&customImage, "custom_image", "", "", "custom container image (only if runtime is 'custom')")
	createCmd.Flags().StringVarP(&src, "src", "", "", "source of the function (single file, directory or TAR archive)")
	createCmd.Flags().Int64VarP(&memory, "memory", "", 128, "max memory in MB for the function")
	createCmd.Flags().Float64VarP(&cpuDemand, "cpu", "", 0.0, "CPU demand for the function (e.g., 1.0 = 1 core)")
	createCmd.Flags().IntVarP(&maxConcurrency, "concurrency", "", 0, "max concurrent execution contexts")
	createCmd.Flags().IntVarP(&timeoutSec, "timeout", "", 0, "execution timeout in seconds")
	createCmd.Flags().IntVarP(&queueCapacity, "queue", "", 0, "invocation queue capacity")
	createCmd.Flags().IntVarP(&desiredWarm, "warm", "", 0, "desired warm-pool size")

	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().StringVarP(&funcName, "function", "f", "", "name of the function")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().StringVarP(&reqId, "request", "r", "", "invocation id")

	rootCmd.AddCommand(cancelCmd)
	cancelCmd.Flags().StringVarP(&reqId, "request", "r", "", "invocation id")

	rootCmd.AddCommand(prewarmCmd)
	prewarmCmd.Flags().StringVarP(&funcName, "function", "f", "", "name of the function")
	prewarmCmd.Flags().IntVarP(&instances, "instances", "n", 1, "warm contexts to provision")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
