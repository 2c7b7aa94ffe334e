package main

import (
	"github.com/smegmarip/stash-face-attributes-plugin/internal/backends"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/rpc"
	"github.com/stashapp/stash/pkg/plugin/common"
)

func main() {
	service := rpc.NewService(backends.Dependencies)
	err := common.ServePlugin(service)
	if err != nil {
		panic(err)
	}
}
