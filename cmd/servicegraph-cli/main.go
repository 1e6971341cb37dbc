package main

import "servicegraph/cmd/servicegraph-cli/cmd"

func main() {
	cmd.Execute()
}
