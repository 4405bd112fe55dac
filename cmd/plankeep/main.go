package main

import (
	"fmt"
	"os"
)

// version is stamped at release time via ldflags; default stays dev for local builds.
var version = "0.0.0-dev"

func main() {
	os.Exit(run(os.Args))
}

func run(arguments []string) int {
	if len(arguments) < 2 {
		fmt.Println("plankeep", version)
		return exitOK
	}
	switch arguments[1] {
	case "hook":
		return runHook(arguments[2:])
	case "mcp":
		return runMCP(arguments[2:])
	case "plan":
		return runPlan(arguments[2:])
	case "version", "--version", "-v":
		fmt.Println("plankeep", version)
		return exitOK
	default:
		printUsage()
		return exitInvalidInput
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  plankeep hook <user-prompt-submit|pre-tool|post-tool|pre-compact> [--project-root <dir>]")
	fmt.Println("  plankeep mcp serve [--listen 127.0.0.1:8765] [--auth-mode off|token] [--auth-token-env <VAR>] [--max-request-bytes <bytes>] [--project-root <dir>] [--json]")
	fmt.Println("  plankeep plan <validate|save|read|path> [flags]")
	fmt.Println("  plankeep version")
}
