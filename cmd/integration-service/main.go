package main

import (
	"fmt"
	"os"

	"github.com/stackpilot/stackpilot/services/integration"
)

func main() {
	if err := integration.Command().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
