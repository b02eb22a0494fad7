package main

import (
	"log"

	"github.com/thiagokokada/gitstatus-go/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("gitstatus-go: %v", err)
	}
}
