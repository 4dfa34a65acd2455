package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chess10kp/lswitch/internal/config"
	"github.com/chess10kp/lswitch/internal/ipc"
)

func socketPath() string {
	if path := os.Getenv("LSWITCH_SOCKET"); path != "" {
		return path
	}
	cfg, err := config.LoadConfig(config.DefaultPath)
	if err != nil {
		return config.DefaultConfig.Switcher.SocketPath
	}
	return cfg.Switcher.SocketPath
}

func usage() string {
	var names []string
	for _, c := range ipc.Commands() {
		names = append(names, string(c))
	}
	return fmt.Sprintf("Usage: lswitchctl %s\n", strings.Join(names, "|"))
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprint(os.Stderr, usage())
		os.Exit(1)
	}

	cmd, err := ipc.ParseCommand(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n%s", err, usage())
		os.Exit(1)
	}

	if err := ipc.Send(socketPath(), cmd); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
