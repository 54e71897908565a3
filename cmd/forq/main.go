package main

import (
	"github.com/Paintersrp/forq/internal/cli"
	"github.com/Paintersrp/forq/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
