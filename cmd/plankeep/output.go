package main

import (
	"encoding/json"
	"fmt"

	coreerrors "github.com/davidahmann/plankeep/core/errors"
)

const (
	exitOK              = 0
	exitInternalFailure = 1
	exitInvalidInput    = 2
)

func writeJSONOutput(output any, exitCode int) int {
	encoded, err := json.Marshal(output)
	if err != nil {
		fmt.Println(`{"ok":false,"error":"failed to encode output","error_category":"internal_failure"}`)
		return exitInternalFailure
	}
	fmt.Println(string(encoded))
	return exitCode
}

// errorEnvelope mirrors the classified error fields so machine consumers get
// the category, code, and remediation hint alongside the message.
func errorEnvelope(err error) map[string]any {
	envelope := map[string]any{
		"ok":        false,
		"error":     err.Error(),
		"retryable": coreerrors.RetryableOf(err),
	}
	if code := coreerrors.CodeOf(err); code != "" {
		envelope["error_code"] = code
	}
	if category := coreerrors.CategoryOf(err); category != "" {
		envelope["error_category"] = string(category)
	}
	if hint := coreerrors.HintOf(err); hint != "" {
		envelope["hint"] = hint
	}
	return envelope
}

func exitCodeForError(err error, fallbackExit int) int {
	if err == nil {
		return exitOK
	}
	switch coreerrors.CategoryOf(err) {
	case coreerrors.CategoryInvalidInput:
		return exitInvalidInput
	case coreerrors.CategorySessionResolution,
		coreerrors.CategoryIdentityDerivation,
		coreerrors.CategoryIOFailure,
		coreerrors.CategoryInternalFailure:
		return exitInternalFailure
	}
	return fallbackExit
}
