package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

type mcpServeConfig struct {
	ListenAddr      string
	AuthMode        string
	AuthToken       string // #nosec G117 -- field name is explicit config surface, not a hardcoded secret.
	MaxRequestBytes int64
	SweepInterval   time.Duration
}

type mcpServeRequestError struct {
	Status  int
	Message string
}

func (requestError mcpServeRequestError) Error() string {
	return requestError.Message
}

type planSaveRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

type planReadRequest struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

type hookPromptRequest struct {
	AgentRole string `json:"agent_role,omitempty"`
}

type hookToolRequest struct {
	ToolName     string         `json:"tool_name"`
	ToolUseID    string         `json:"tool_use_id,omitempty"`
	ToolInput    map[string]any `json:"tool_input,omitempty"`
	ToolResponse map[string]any `json:"tool_response,omitempty"`
}

type hookCompactingRequest struct {
	SessionID string `json:"session_id"`
}

func runMCP(arguments []string) int {
	if len(arguments) < 1 || arguments[0] != "serve" {
		fmt.Println("Usage: plankeep mcp serve [--listen 127.0.0.1:8765] [--auth-mode off|token] [--auth-token-env <VAR>] [--max-request-bytes <bytes>] [--project-root <dir>] [--json]")
		return exitInvalidInput
	}
	return runMCPServe(arguments[1:])
}

func runMCPServe(arguments []string) int {
	flagSet := flag.NewFlagSet("mcp-serve", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var listenAddr string
	var authMode string
	var authTokenEnv string
	var maxRequestBytes int64
	var projectRoot string
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&listenAddr, "listen", "", "listen address (default 127.0.0.1:8765)")
	flagSet.StringVar(&authMode, "auth-mode", "", "serve auth mode: off|token")
	flagSet.StringVar(&authTokenEnv, "auth-token-env", "", "env var containing bearer token for --auth-mode token")
	flagSet.Int64Var(&maxRequestBytes, "max-request-bytes", 0, "maximum request body size in bytes (default 1 MiB)")
	flagSet.StringVar(&projectRoot, "project-root", "", "project root (defaults to cwd)")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit startup JSON")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(arguments); err != nil {
		return writeJSONOutput(errorEnvelope(err), exitInvalidInput)
	}
	if helpFlag {
		fmt.Println("Usage: plankeep mcp serve [--listen 127.0.0.1:8765] [--auth-mode off|token] [--auth-token-env <VAR>] [--max-request-bytes <bytes>] [--project-root <dir>] [--json]")
		return exitOK
	}

	env, err := newRuntimeEnv(projectRoot)
	if err != nil {
		return writeJSONOutput(errorEnvelope(err), exitCodeForError(err, exitInternalFailure))
	}

	config, err := resolveServeConfig(env, listenAddr, authMode, authTokenEnv, maxRequestBytes)
	if err != nil {
		return writeJSONOutput(errorEnvelope(err), exitInvalidInput)
	}

	// The serve process is long lived, so the stale-call sweeper runs here.
	stopSweeper := env.hooks.Tracker.StartSweeper(config.SweepInterval)
	defer stopSweeper()

	handler := newServeHandler(config, env)

	if jsonOutput {
		if code := writeJSONOutput(map[string]any{
			"ok":        true,
			"listen":    config.ListenAddr,
			"auth_mode": config.AuthMode,
		}, exitOK); code != exitOK {
			return code
		}
	} else {
		fmt.Printf("plankeep serve: listening=%s auth=%s\n", config.ListenAddr, config.AuthMode)
	}

	server := &http.Server{
		Addr:              config.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return writeJSONOutput(errorEnvelope(err), exitInternalFailure)
	}
	return exitOK
}

// resolveServeConfig layers CLI flags over the project config defaults and
// enforces the loopback/auth invariant: binding beyond loopback requires
// token auth.
func resolveServeConfig(env *runtimeEnv, listenAddr, authMode, authTokenEnv string, maxRequestBytes int64) (mcpServeConfig, error) {
	config := mcpServeConfig{
		ListenAddr:      strings.TrimSpace(listenAddr),
		AuthMode:        strings.ToLower(strings.TrimSpace(authMode)),
		MaxRequestBytes: maxRequestBytes,
	}
	if config.ListenAddr == "" {
		config.ListenAddr = env.config.MCPServe.Listen
	}
	if config.ListenAddr == "" {
		config.ListenAddr = "127.0.0.1:8765"
	}
	if config.AuthMode == "" {
		config.AuthMode = env.config.MCPServe.AuthMode
	}
	if config.AuthMode == "" {
		config.AuthMode = "off"
	}
	if config.AuthMode != "off" && config.AuthMode != "token" {
		return mcpServeConfig{}, fmt.Errorf("unsupported --auth-mode value (expected off or token)")
	}
	if config.MaxRequestBytes == 0 {
		config.MaxRequestBytes = env.config.MCPServe.MaxRequestBytes
	}
	if config.MaxRequestBytes == 0 {
		config.MaxRequestBytes = 1 << 20
	}
	if config.MaxRequestBytes < 0 {
		return mcpServeConfig{}, fmt.Errorf("--max-request-bytes must be > 0")
	}

	isLoopback, err := isLoopbackListen(config.ListenAddr)
	if err != nil {
		return mcpServeConfig{}, err
	}
	if !isLoopback && config.AuthMode != "token" {
		return mcpServeConfig{}, fmt.Errorf("non-loopback --listen requires --auth-mode token")
	}
	if config.AuthMode == "token" {
		tokenEnv := strings.TrimSpace(authTokenEnv)
		if tokenEnv == "" {
			tokenEnv = env.config.MCPServe.AuthTokenEnv
		}
		if tokenEnv == "" {
			return mcpServeConfig{}, fmt.Errorf("--auth-mode token requires --auth-token-env")
		}
		tokenValue := strings.TrimSpace(os.Getenv(tokenEnv))
		if tokenValue == "" {
			return mcpServeConfig{}, fmt.Errorf("--auth-token-env did not resolve to a non-empty value")
		}
		config.AuthToken = tokenValue
	}

	sweepInterval, err := env.config.SweepInterval()
	if err != nil {
		return mcpServeConfig{}, fmt.Errorf("hooks.sweep_interval: %w", err)
	}
	if sweepInterval == 0 {
		sweepInterval = time.Minute
	}
	config.SweepInterval = sweepInterval
	return config, nil
}

func newServeHandler(config mcpServeConfig, env *runtimeEnv) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodGet {
			writeServeError(writer, http.StatusMethodNotAllowed, "expected GET")
			return
		}
		writeServeJSON(writer, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "plankeep.mcp.serve",
		})
	})

	mux.HandleFunc("/v1/tools/plan_save", servePOST(config, func(writer http.ResponseWriter, request *http.Request) {
		var input planSaveRequest
		if err := decodeServeRequest(config, writer, request, &input); err != nil {
			writeServeError(writer, serveErrorStatus(err), err.Error())
			return
		}
		confirmation, err := env.hooks.PlanSave(request.Context(), input.SessionID, input.Content)
		if err != nil {
			writeServeJSON(writer, serveToolErrorStatus(err), errorEnvelope(err))
			return
		}
		writeServeJSON(writer, http.StatusOK, map[string]any{"ok": true, "message": confirmation})
	}))

	mux.HandleFunc("/v1/tools/plan_read", servePOST(config, func(writer http.ResponseWriter, request *http.Request) {
		var input planReadRequest
		if err := decodeServeRequest(config, writer, request, &input); err != nil {
			writeServeError(writer, serveErrorStatus(err), err.Error())
			return
		}
		text, err := env.hooks.PlanRead(request.Context(), input.SessionID)
		if err != nil {
			writeServeJSON(writer, serveToolErrorStatus(err), errorEnvelope(err))
			return
		}
		writeServeJSON(writer, http.StatusOK, map[string]any{"ok": true, "plan": text})
	}))

	mux.HandleFunc("/v1/hooks/prompt", servePOST(config, func(writer http.ResponseWriter, request *http.Request) {
		var input hookPromptRequest
		if err := decodeServeRequest(config, writer, request, &input); err != nil {
			writeServeError(writer, serveErrorStatus(err), err.Error())
			return
		}
		writeServeJSON(writer, http.StatusOK, map[string]any{
			"ok":     true,
			"blocks": env.hooks.PromptBlocks(input.AgentRole),
		})
	}))

	mux.HandleFunc("/v1/hooks/pre-tool", servePOST(config, func(writer http.ResponseWriter, request *http.Request) {
		var input hookToolRequest
		if err := decodeServeRequest(config, writer, request, &input); err != nil {
			writeServeError(writer, serveErrorStatus(err), err.Error())
			return
		}
		env.hooks.ToolStarted(input.ToolName, input.ToolUseID, input.ToolInput)
		writeServeJSON(writer, http.StatusOK, map[string]any{"ok": true})
	}))

	mux.HandleFunc("/v1/hooks/post-tool", servePOST(config, func(writer http.ResponseWriter, request *http.Request) {
		var input hookToolRequest
		if err := decodeServeRequest(config, writer, request, &input); err != nil {
			writeServeError(writer, serveErrorStatus(err), err.Error())
			return
		}
		blocks := env.hooks.ToolFinished(input.ToolName, input.ToolUseID, input.ToolResponse)
		if blocks == nil {
			blocks = []string{}
		}
		writeServeJSON(writer, http.StatusOK, map[string]any{"ok": true, "blocks": blocks})
	}))

	mux.HandleFunc("/v1/hooks/compacting", servePOST(config, func(writer http.ResponseWriter, request *http.Request) {
		var input hookCompactingRequest
		if err := decodeServeRequest(config, writer, request, &input); err != nil {
			writeServeError(writer, serveErrorStatus(err), err.Error())
			return
		}
		block, err := env.hooks.CompactionContext(request.Context(), input.SessionID)
		if err != nil {
			writeServeJSON(writer, serveToolErrorStatus(err), errorEnvelope(err))
			return
		}
		writeServeJSON(writer, http.StatusOK, map[string]any{"ok": true, "context": block})
	}))

	return mux
}

// servePOST enforces the shared preconditions of every mutation endpoint:
// POST only, then bearer auth when configured.
func servePOST(config mcpServeConfig, handler http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			writeServeError(writer, http.StatusMethodNotAllowed, "expected POST")
			return
		}
		if err := authorizeServeRequest(config, request); err != nil {
			writeServeError(writer, http.StatusUnauthorized, err.Error())
			return
		}
		handler(writer, request)
	}
}

func authorizeServeRequest(config mcpServeConfig, request *http.Request) error {
	if config.AuthMode != "token" {
		return nil
	}
	if strings.TrimSpace(config.AuthToken) == "" {
		return fmt.Errorf("auth token is not configured")
	}
	rawHeader := strings.TrimSpace(request.Header.Get("Authorization"))
	if !strings.HasPrefix(rawHeader, "Bearer ") {
		return fmt.Errorf("missing bearer authorization")
	}
	provided := strings.TrimSpace(strings.TrimPrefix(rawHeader, "Bearer "))
	if subtle.ConstantTimeCompare([]byte(provided), []byte(config.AuthToken)) != 1 {
		return fmt.Errorf("invalid bearer authorization")
	}
	return nil
}

func ensureServeContentType(request *http.Request) error {
	contentType := strings.TrimSpace(request.Header.Get("Content-Type"))
	if contentType == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return mcpServeRequestError{Status: http.StatusUnsupportedMediaType, Message: "invalid content-type header"}
	}
	if mediaType != "application/json" {
		return mcpServeRequestError{Status: http.StatusUnsupportedMediaType, Message: "content-type must be application/json"}
	}
	return nil
}

// decodeServeRequest reads exactly one JSON object into target, rejecting
// unknown fields, oversized bodies, and trailing content.
func decodeServeRequest(config mcpServeConfig, writer http.ResponseWriter, request *http.Request, target any) error {
	if err := ensureServeContentType(request); err != nil {
		return err
	}
	request.Body = http.MaxBytesReader(writer, request.Body, config.MaxRequestBytes)
	defer func() {
		_ = request.Body.Close()
	}()
	decoder := json.NewDecoder(request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return mcpServeRequestError{
				Status:  http.StatusRequestEntityTooLarge,
				Message: "request body exceeds max-request-bytes",
			}
		}
		return mcpServeRequestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("decode request: %v", err),
		}
	}
	var tail struct{}
	if err := decoder.Decode(&tail); err != io.EOF {
		return mcpServeRequestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
		}
	}
	return nil
}

func writeServeError(writer http.ResponseWriter, status int, message string) {
	writeServeJSON(writer, status, map[string]any{"ok": false, "error": message})
}

func writeServeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("content-type", "application/json")
	writer.WriteHeader(status)
	encoder := json.NewEncoder(writer)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func serveErrorStatus(err error) int {
	var requestError mcpServeRequestError
	if errors.As(err, &requestError) {
		return requestError.Status
	}
	return http.StatusBadRequest
}

// serveToolErrorStatus maps classified tool errors to HTTP statuses: caller
// mistakes are 4xx, everything else is a 500.
func serveToolErrorStatus(err error) int {
	switch exitCodeForError(err, exitInternalFailure) {
	case exitInvalidInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func isLoopbackListen(listenAddr string) (bool, error) {
	trimmed := strings.TrimSpace(listenAddr)
	if trimmed == "" {
		return false, fmt.Errorf("listen address is required")
	}
	host, _, err := net.SplitHostPort(trimmed)
	if err != nil {
		return false, fmt.Errorf("invalid --listen address: %w", err)
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true, nil
	}
	parsed := net.ParseIP(host)
	if parsed == nil {
		return false, nil
	}
	return parsed.IsLoopback(), nil
}
