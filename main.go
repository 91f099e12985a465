package main

import "github.com/tmoller/quiver/cmd"

// TODO: engine checkpointing so long runs can be frozen and resumed - model,
//       kernels, and results all need to serialize

// TODO: dense mass matrix adaptation for HMC/NUTS (diagonal only for now)

func main() {
	cmd.Execute()
}
