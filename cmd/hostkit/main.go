// Command hostkit provisions the host build and debug tools of an embedded
// firmware toolchain into a self-contained directory.
package main

import "hostkit/internal/cli"

func main() {
	cli.Execute()
}
