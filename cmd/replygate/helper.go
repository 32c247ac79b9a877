package main

import (
	"context"
	"fmt"

	"github.com/miuzhaii/replygate/cmd/replygate/runtime"

	"github.com/miuzhaii/replygate/internal/config"

	"github.com/spf13/cobra"
)

// executeWithRuntime wires the full runtime for a foreground command and
// tears it down afterwards. The signal handler makes Ctrl-C cancel the
// runtime context so fn can unwind cleanly.
func executeWithRuntime(cmd *cobra.Command, fn func(*runtime.RuntimeComponents) error) error {
	workspaceID := runtime.ResolveWorkspaceID(cmd)

	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	handler := NewSignalHandler(context.Background())
	handler.Start()
	defer handler.Stop()

	builder := runtime.NewRuntimeBuilder().
		WithContext(handler.Context()).
		WithConfig(cfg).
		WithWorkspace(workspaceID)

	components, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer components.Stop()

	return fn(components)
}
