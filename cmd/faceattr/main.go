package main

import (
	"github.com/smegmarip/stash-face-attributes-plugin/internal/backends"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/cli"
)

func main() {
	cli.Execute(backends.Dependencies)
}
