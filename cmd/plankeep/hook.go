package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// hookInput is the JSON the host writes to stdin for every lifecycle event.
// Unknown fields are tolerated: hosts add fields between releases.
type hookInput struct {
	CWD          string          `json:"cwd"`
	SessionID    string          `json:"session_id"`
	AgentRole    string          `json:"agent_role"`
	ToolName     string          `json:"tool_name"`
	ToolUseID    string          `json:"tool_use_id"`
	ToolInput    json.RawMessage `json:"tool_input"`
	ToolResponse json.RawMessage `json:"tool_response"`
	Prompt       string          `json:"prompt"`
}

type hookOutput struct {
	HookSpecificOutput hookSpecificOutput `json:"hookSpecificOutput"`
}

type hookSpecificOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}

func runHook(arguments []string) int {
	if len(arguments) < 1 {
		printHookUsage()
		return exitInvalidInput
	}
	event := arguments[0]

	flagSet := flag.NewFlagSet("hook", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	var projectRoot string
	flagSet.StringVar(&projectRoot, "project-root", "", "project root (defaults to the hook input cwd)")
	if err := flagSet.Parse(arguments[1:]); err != nil {
		printHookUsage()
		return exitInvalidInput
	}

	return runHookEvent(event, projectRoot, os.Stdin, os.Stdout)
}

// runHookEvent handles one lifecycle event. Hooks never block the host: any
// failure past input decoding reports on stderr and still exits zero with an
// empty context block.
func runHookEvent(event, projectRoot string, stdin io.Reader, stdout io.Writer) int {
	eventName, ok := hookEventNames[event]
	if !ok {
		printHookUsage()
		return exitInvalidInput
	}

	input, err := decodeHookInput(stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plankeep: decode hook input: %v\n", err)
		return exitInvalidInput
	}

	if projectRoot == "" {
		projectRoot = input.CWD
	}
	env, err := newRuntimeEnv(projectRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plankeep: %v\n", err)
		return writeHookOutput(stdout, eventName, "")
	}

	var additionalContext string
	switch event {
	case "user-prompt-submit":
		additionalContext = strings.Join(env.hooks.PromptBlocks(input.AgentRole), "\n\n")
	case "pre-tool":
		var toolArguments map[string]any
		if len(input.ToolInput) > 0 {
			if err := json.Unmarshal(input.ToolInput, &toolArguments); err != nil {
				fmt.Fprintf(os.Stderr, "plankeep: decode tool input: %v\n", err)
			}
		}
		env.hooks.ToolStarted(input.ToolName, input.ToolUseID, toolArguments)
	case "post-tool":
		var toolResponse map[string]any
		if len(input.ToolResponse) > 0 {
			if err := json.Unmarshal(input.ToolResponse, &toolResponse); err != nil {
				fmt.Fprintf(os.Stderr, "plankeep: decode tool response: %v\n", err)
			}
		}
		additionalContext = strings.Join(env.hooks.ToolFinished(input.ToolName, input.ToolUseID, toolResponse), "\n\n")
	case "pre-compact":
		block, err := env.hooks.CompactionContext(context.Background(), input.SessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "plankeep: compaction context: %v\n", err)
		}
		additionalContext = block
	}
	return writeHookOutput(stdout, eventName, additionalContext)
}

// hookEventNames maps CLI event names to the camel-case names the host
// expects back in hookSpecificOutput.
var hookEventNames = map[string]string{
	"user-prompt-submit": "UserPromptSubmit",
	"pre-tool":           "PreToolUse",
	"post-tool":          "PostToolUse",
	"pre-compact":        "PreCompact",
}

func decodeHookInput(reader io.Reader) (hookInput, error) {
	var input hookInput
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(&input); err != nil {
		return hookInput{}, err
	}
	return input, nil
}

func writeHookOutput(writer io.Writer, eventName, additionalContext string) int {
	output := hookOutput{
		HookSpecificOutput: hookSpecificOutput{
			HookEventName:     eventName,
			AdditionalContext: additionalContext,
		},
	}
	encoded, err := json.Marshal(output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plankeep: encode hook output: %v\n", err)
		return exitOK
	}
	fmt.Fprintln(writer, string(encoded))
	return exitOK
}

func printHookUsage() {
	fmt.Println("Usage: plankeep hook <user-prompt-submit|pre-tool|post-tool|pre-compact> [--project-root <dir>]")
	fmt.Println("Reads the host's hook JSON on stdin and writes a hookSpecificOutput JSON object on stdout.")
}
