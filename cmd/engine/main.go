// Command engine is the provgraph-engine CLI entrypoint.
package main

import "github.com/provgraph/engine/internal/cli"

func main() {
	cli.Execute()
}
