package main

import (
	"context"

	"github.com/bjulian5/gg/cmd"
)

func main() {
	ctx := context.Background()
	cmd.Execute(ctx)
}
