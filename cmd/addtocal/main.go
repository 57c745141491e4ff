package main

import (
	"fmt"
	"os"

	appLog "addtocal/internal/log"
)

func main() {
	err := newRootCommand().Execute()
	appLog.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
