package main

import "github.com/appnet-org/calpack/cmd/calpack/cmd"

func main() {
	cmd.Execute()
}
