package main

import "github.com/comalice/safetyx/internal/cli"

func main() {
	cli.Execute()
}
