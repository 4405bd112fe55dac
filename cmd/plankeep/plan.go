package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/davidahmann/plankeep/core/identity"
	"github.com/davidahmann/plankeep/core/planschema"
	"github.com/davidahmann/plankeep/core/session"
)

func runPlan(arguments []string) int {
	if len(arguments) < 1 {
		printPlanUsage()
		return exitInvalidInput
	}
	switch arguments[0] {
	case "validate":
		return runPlanValidate(arguments[1:], os.Stdin)
	case "save":
		return runPlanSave(arguments[1:], os.Stdin)
	case "read":
		return runPlanRead(arguments[1:])
	case "path":
		return runPlanPath(arguments[1:])
	default:
		printPlanUsage()
		return exitInvalidInput
	}
}

// runPlanValidate checks plan markdown without touching the store. Reads the
// plan from --file or stdin.
func runPlanValidate(arguments []string, stdin io.Reader) int {
	flagSet := flag.NewFlagSet("plan validate", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	var filePath string
	var jsonOutput bool
	flagSet.StringVar(&filePath, "file", "", "plan file to validate (defaults to stdin)")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit a JSON result")
	if err := flagSet.Parse(arguments); err != nil {
		printPlanUsage()
		return exitInvalidInput
	}

	text, err := readPlanText(filePath, stdin)
	if err != nil {
		if jsonOutput {
			return writeJSONOutput(errorEnvelope(err), exitInternalFailure)
		}
		fmt.Fprintf(os.Stderr, "plankeep: %v\n", err)
		return exitInternalFailure
	}

	result := planschema.Validate(text)
	if jsonOutput {
		output := map[string]any{"ok": result.OK}
		if len(result.Warnings) > 0 {
			output["warnings"] = result.Warnings
		}
		if !result.OK {
			output["error"] = result.Error
			output["hint"] = result.Hint
			return writeJSONOutput(output, exitInvalidInput)
		}
		return writeJSONOutput(output, exitOK)
	}

	if !result.OK {
		fmt.Println(result.Error)
		fmt.Println()
		fmt.Println(result.Hint)
		return exitInvalidInput
	}
	fmt.Println("Plan is valid.")
	for _, warning := range result.Warnings {
		fmt.Println("warning:", warning)
	}
	return exitOK
}

func runPlanSave(arguments []string, stdin io.Reader) int {
	flagSet := flag.NewFlagSet("plan save", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	var sessionID, filePath, projectRoot string
	var jsonOutput bool
	flagSet.StringVar(&sessionID, "session", "", "host session id")
	flagSet.StringVar(&filePath, "file", "", "plan file to save (defaults to stdin)")
	flagSet.StringVar(&projectRoot, "project-root", "", "project root (defaults to cwd)")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit a JSON result")
	if err := flagSet.Parse(arguments); err != nil {
		printPlanUsage()
		return exitInvalidInput
	}

	text, err := readPlanText(filePath, stdin)
	if err == nil {
		var env *runtimeEnv
		env, err = newRuntimeEnv(projectRoot)
		if err == nil {
			var confirmation string
			confirmation, err = env.hooks.PlanSave(context.Background(), sessionID, text)
			if err == nil {
				if jsonOutput {
					return writeJSONOutput(map[string]any{"ok": true, "message": confirmation}, exitOK)
				}
				fmt.Println(confirmation)
				return exitOK
			}
		}
	}
	if jsonOutput {
		return writeJSONOutput(errorEnvelope(err), exitCodeForError(err, exitInternalFailure))
	}
	fmt.Fprintf(os.Stderr, "plankeep: %v\n", err)
	return exitCodeForError(err, exitInternalFailure)
}

func runPlanRead(arguments []string) int {
	flagSet := flag.NewFlagSet("plan read", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	var sessionID, projectRoot string
	var jsonOutput bool
	flagSet.StringVar(&sessionID, "session", "", "host session id")
	flagSet.StringVar(&projectRoot, "project-root", "", "project root (defaults to cwd)")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit a JSON result")
	if err := flagSet.Parse(arguments); err != nil {
		printPlanUsage()
		return exitInvalidInput
	}

	env, err := newRuntimeEnv(projectRoot)
	if err == nil {
		var text string
		text, err = env.hooks.PlanRead(context.Background(), sessionID)
		if err == nil {
			if jsonOutput {
				return writeJSONOutput(map[string]any{"ok": true, "plan": text}, exitOK)
			}
			fmt.Println(text)
			return exitOK
		}
	}
	if jsonOutput {
		return writeJSONOutput(errorEnvelope(err), exitCodeForError(err, exitInternalFailure))
	}
	fmt.Fprintf(os.Stderr, "plankeep: %v\n", err)
	return exitCodeForError(err, exitInternalFailure)
}

// runPlanPath prints where the plan for a session lives, resolving the root
// session and project identity the same way save and read do.
func runPlanPath(arguments []string) int {
	flagSet := flag.NewFlagSet("plan path", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	var sessionID, projectRoot string
	var jsonOutput bool
	flagSet.StringVar(&sessionID, "session", "", "host session id")
	flagSet.StringVar(&projectRoot, "project-root", "", "project root (defaults to cwd)")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit a JSON result")
	if err := flagSet.Parse(arguments); err != nil {
		printPlanUsage()
		return exitInvalidInput
	}

	env, err := newRuntimeEnv(projectRoot)
	if err == nil {
		ctx := context.Background()
		var rootID, projectID string
		rootID, err = session.ResolveRoot(ctx, env.hooks.Sessions, sessionID)
		if err == nil {
			projectID, err = identity.ResolveProject(ctx, env.hooks.ProjectRoot, env.hooks.Warn)
			if err == nil {
				path := env.hooks.Store.PlanPath(projectID, rootID)
				if jsonOutput {
					return writeJSONOutput(map[string]any{
						"ok":           true,
						"path":         path,
						"project_id":   projectID,
						"root_session": rootID,
					}, exitOK)
				}
				fmt.Println(path)
				return exitOK
			}
		}
	}
	if jsonOutput {
		return writeJSONOutput(errorEnvelope(err), exitCodeForError(err, exitInternalFailure))
	}
	fmt.Fprintf(os.Stderr, "plankeep: %v\n", err)
	return exitCodeForError(err, exitInternalFailure)
}

func readPlanText(filePath string, stdin io.Reader) (string, error) {
	if filePath == "" || filePath == "-" {
		content, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read plan from stdin: %w", err)
		}
		return string(content), nil
	}
	// #nosec G304 -- plan path is explicit local user input.
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("read plan file: %w", err)
	}
	return string(content), nil
}

func printPlanUsage() {
	fmt.Println("Usage:")
	fmt.Println("  plankeep plan validate [--file <path>] [--json]")
	fmt.Println("  plankeep plan save --session <id> [--file <path>] [--project-root <dir>] [--json]")
	fmt.Println("  plankeep plan read --session <id> [--project-root <dir>] [--json]")
	fmt.Println("  plankeep plan path --session <id> [--project-root <dir>] [--json]")
}
