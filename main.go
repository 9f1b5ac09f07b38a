package main

import "github.com/ghcr-tools/ghcr-prune/cmd"

func main() {
	cmd.Execute()
}
