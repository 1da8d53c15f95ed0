package main

import (
	"github.com/stratus-faas/stratus/internal/executor"
)

func main() {
	executor.Run()
}
