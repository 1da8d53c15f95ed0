package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stratus-faas/stratus/utils"
)

func status(cmd *cobra.Command, args []string) {
	url := fmt.Sprintf("http://%s:%d/status", ServerConfig.Host, ServerConfig.Port)
	resp, err := utils.GetJson(url)
	if err != nil {
		fmt.Printf("Status request failed: %v\n", err)
		os.Exit(2)
	}
	utils.PrintJsonResponse(resp.Body)
}
