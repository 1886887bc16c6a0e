package main

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/youruser/quill/internal/action"
	"github.com/youruser/quill/internal/api"
	"github.com/youruser/quill/internal/config"
	"github.com/youruser/quill/internal/diff"
	"github.com/youruser/quill/internal/editor"
	"github.com/youruser/quill/internal/logging"
	"github.com/youruser/quill/internal/task"
)

//go:embed version.txt
var version string

// buildCommit is set via -ldflags or falls back to VCS info from debug.ReadBuildInfo.
var buildCommit string

var (
	appConfig  *config.Config
	controller *task.Controller
	buffer     = editor.NewMemoryBuffer("")
	log        = logging.Get()

	respondMu sync.Mutex
	configMu  sync.Mutex

	appCtx, appCancel = context.WithCancel(context.Background())
)

func getBuildCommit() string {
	if buildCommit != "" {
		return buildCommit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return setting.Value[:7]
		}
	}
	return ""
}

func versionString() string {
	v := strings.TrimSpace(version)
	if commit := getBuildCommit(); commit != "" {
		return v + " (" + commit + ")"
	}
	return v
}

func main() {
	// Handle --version / --build flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v":
			fmt.Printf("quill %s\n", versionString())
			return
		case "--build":
			if commit := getBuildCommit(); commit != "" {
				fmt.Println(commit)
			} else {
				fmt.Println("unknown")
			}
			return
		}
	}

	// Debug: show if QUILL_DEBUG is set
	if os.Getenv("QUILL_DEBUG") == "1" {
		fmt.Fprintf(os.Stderr, "quill: process started with QUILL_DEBUG=1\n")
	}
	logBuildInfo()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		handleRequest(line)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			respond("", map[string]any{
				"type":    "error",
				"message": "Request too large (max 1MB). Reduce buffer size or split the request.",
			})
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "stdin error: %v\n", err)
		os.Exit(1)
	}
	shutdown()
}

func logBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		log.Info("Build info: unavailable")
		return
	}

	var revision string
	var buildTime string
	var modified string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			buildTime = setting.Value
		case "vcs.modified":
			modified = setting.Value
		}
	}

	version := info.Main.Version
	if revision != "" {
		version = revision
	}
	if modified == "true" {
		version += " (modified)"
	}

	if buildTime != "" {
		log.Info("Build: %s; go=%s; time=%s", version, runtime.Version(), buildTime)
		return
	}
	log.Info("Build: %s; go=%s", version, runtime.Version())
}

// shutdown aborts in-flight streams and closes the log. The abort is
// what turns any live operations into silent cancellations instead of
// errors racing process exit.
func shutdown() {
	appCancel()
	log.Close()
}

// ensureConfig loads the configuration and builds the controller on
// first use, so ping and version work without a config file present.
func ensureConfig() error {
	configMu.Lock()
	defer configMu.Unlock()
	if appConfig != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DebugFile != "" {
		log.EnableFile(cfg.DebugFile)
	}
	appConfig = cfg
	controller = task.NewController(task.Options{
		Backend:       api.NewClient(cfg.BaseURL, cfg.APIKey),
		Catalog:       action.NewCatalog(cfg.ActionsDir),
		ContextBudget: cfg.ContextBudget,
		ApplyChecked:  *cfg.ApplyMode == "checked",
		TeamID:        cfg.TeamID,
		ModelID:       cfg.DefaultModel,
		KnowledgeBase: cfg.KnowledgeBaseID,
		WebSearch:     *cfg.EnableWebSearch,
	})
	wireEvents(controller)
	return nil
}

// wireEvents forwards controller bus events to stdout as pushed
// messages. Pushes carry no request id; hosts correlate by session
// and op_id.
func wireEvents(c *task.Controller) {
	c.Events().Subscribe(func(e task.Event) {
		msg := map[string]any{
			"type":          string(e.Type),
			"session":       e.SessionID,
			"local_session": e.LocalID,
		}
		if e.OpID != "" {
			msg["op_id"] = e.OpID
		}
		if e.Status != "" {
			msg["status"] = string(e.Status)
		}
		switch e.Type {
		case task.EventChunk:
			msg["content"] = e.Chunk
		case task.EventDone:
			msg["result"] = e.Result
		case task.EventError:
			msg["error"] = e.Err
		}
		respond("", msg)
	})
}

func handleRequest(line string) {
	var req map[string]any
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		log.Error("Invalid JSON request: %s", line)
		respond("", map[string]any{"type": "error", "message": "Invalid JSON"})
		return
	}

	op, _ := req["op"].(string)
	log.Request(op, line)
	reqID := requestID(req)

	switch op {
	case "ping":
		respond(reqID, map[string]any{"type": "ok"})

	case "version":
		respond(reqID, map[string]any{"type": "version", "version": versionString()})

	case "config_info":
		if err := ensureConfig(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{
			"type":           "config",
			"base_url":       appConfig.BaseURL,
			"model":          appConfig.DefaultModel,
			"apply_mode":     *appConfig.ApplyMode,
			"team_id":        appConfig.TeamID,
			"web_search":     *appConfig.EnableWebSearch,
			"actions_dir":    appConfig.ActionsDir,
			"context_budget": appConfig.ContextBudget,
		})

	case "actions_list":
		if err := ensureConfig(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "actions", "actions": controller.Catalog().Specs()})

	case "session_new":
		if err := ensureConfig(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		sess := controller.Registry().NewSession()
		respond(reqID, map[string]any{"type": "session", "session": task.Snapshot(sess)})

	case "session_list":
		if err := ensureConfig(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "sessions", "sessions": sessionViews(controller.Registry().List())})

	case "session_search":
		if err := ensureConfig(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		query, _ := req["query"].(string)
		respond(reqID, map[string]any{"type": "sessions", "sessions": sessionViews(controller.Registry().Search(query))})

	case "session_get":
		sess, ok := lookupSession(reqID, req)
		if !ok {
			return
		}
		respond(reqID, map[string]any{"type": "session", "session": task.Snapshot(sess)})

	case "session_rename":
		sess, ok := lookupSession(reqID, req)
		if !ok {
			return
		}
		title, _ := req["title"].(string)
		if title == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: title"})
			return
		}
		sess.SetTitle(title)
		respond(reqID, map[string]any{"type": "ok"})

	case "session_remove":
		if err := ensureConfig(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		if !controller.Registry().Remove(sessionParam(req)) {
			respond(reqID, errorResponse(task.ErrSessionNotFound))
			return
		}
		respond(reqID, map[string]any{"type": "ok"})

	case "save_draft":
		sess, ok := lookupSession(reqID, req)
		if !ok {
			return
		}
		draft, _ := req["draft"].(string)
		sess.SetDraft(draft)
		respond(reqID, map[string]any{"type": "ok"})

	case "assist_start":
		if err := ensureConfig(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		act, _ := req["action"].(string)
		if act == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: action"})
			return
		}
		prompt, _ := req["prompt"].(string)
		if from, to, ok := rangeParams(req); ok {
			buffer.Select(from, to)
		}
		sess, operation, err := controller.StartAssist(appCtx, sessionParam(req), buffer, action.Request{
			Action:       action.Action(act),
			CustomPrompt: prompt,
		})
		if err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok", "session": sess.ID(), "op_id": operation.ID})

	case "chat_send":
		if err := ensureConfig(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		message, _ := req["message"].(string)
		model, _ := req["model"].(string)
		sess, operation, err := controller.StartChat(appCtx, sessionParam(req), task.ChatMessage{
			Text:        message,
			ModelID:     model,
			Attachments: stringSlice(req["attachment_ids"]),
			Contexts:    contextsParam(req),
		})
		if err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok", "session": sess.ID(), "op_id": operation.ID})

	case "cancel":
		if err := ensureConfig(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		cancelled := controller.Cancel(sessionParam(req))
		respond(reqID, map[string]any{"type": "ok", "cancelled": cancelled})

	case "accept":
		if err := ensureConfig(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		res, err := controller.Accept(sessionParam(req))
		if err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok", "result": res})

	case "reject":
		if err := ensureConfig(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		if err := controller.Reject(sessionParam(req)); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok"})

	case "regenerate":
		if err := ensureConfig(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		operation, err := controller.Regenerate(appCtx, sessionParam(req))
		if err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok", "op_id": operation.ID})

	case "resume":
		if err := ensureConfig(); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		taskID := int64Param(req, "task_id")
		resumed, err := controller.Resume(appCtx, taskID)
		if err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok", "resumed": resumed})

	case "selection_changed":
		if clear, _ := req["clear"].(bool); clear {
			buffer.ClearSelection()
			respond(reqID, map[string]any{"type": "ok"})
			return
		}
		from, to, ok := rangeParams(req)
		if !ok {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: from/to"})
			return
		}
		span := buffer.Select(from, to)
		respond(reqID, map[string]any{"type": "ok", "text": span.Text})

	case "buffer_set":
		content, ok := req["content"].(string)
		if !ok {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: content"})
			return
		}
		buffer.SetContent(content)
		respond(reqID, map[string]any{"type": "ok"})

	case "estimate_tokens":
		text, ok := req["text"].(string)
		if !ok {
			text = buffer.Content()
		}
		respond(reqID, map[string]any{"type": "tokens", "tokens": action.EstimateTokensSimple(text)})

	case "shutdown":
		respond(reqID, map[string]any{"type": "ok"})
		shutdown()
		os.Exit(0)

	default:
		respond(reqID, map[string]any{"type": "error", "message": "Unknown op: " + op})
	}
}

// lookupSession resolves the request's session id, responding with an
// error itself when the session cannot be found.
func lookupSession(reqID string, req map[string]any) (*task.Session, bool) {
	if err := ensureConfig(); err != nil {
		respond(reqID, errorResponse(err))
		return nil, false
	}
	sess, ok := controller.Registry().Get(sessionParam(req))
	if !ok {
		respond(reqID, errorResponse(task.ErrSessionNotFound))
		return nil, false
	}
	return sess, true
}

func sessionViews(sessions []*task.Session) []task.SessionView {
	views := make([]task.SessionView, len(sessions))
	for i, s := range sessions {
		views[i] = task.Snapshot(s)
	}
	return views
}

func errorResponse(err error) map[string]any {
	var msg string
	switch {
	case errors.Is(err, action.ErrValidation):
		msg = err.Error()
	case errors.Is(err, task.ErrSessionNotFound):
		msg = "Session not found"
	case errors.Is(err, task.ErrNoOperation):
		msg = "Nothing to review"
	case errors.Is(err, task.ErrBadTransition):
		msg = err.Error()
	case errors.Is(err, diff.ErrStale):
		msg = "Buffer changed since the result was generated. Regenerate or reject."
	case errors.Is(err, config.ErrNoConfig):
		msg = "Config file not found: ~/.config/quill/config.json"
	case errors.Is(err, config.ErrNoAPIKey):
		msg = "API key not set in config"
	case errors.Is(err, config.ErrInvalidApplyMode):
		msg = err.Error()
	default:
		msg = err.Error()
	}
	return map[string]any{"type": "error", "message": msg}
}

func respond(reqID string, data map[string]any) {
	out, _ := json.Marshal(addResponseID(reqID, data))
	msgType, _ := data["type"].(string)
	respondMu.Lock()
	defer respondMu.Unlock()
	log.Response(msgType, string(out))
	fmt.Println(string(out))
}

func addResponseID(reqID string, data map[string]any) map[string]any {
	if reqID == "" {
		return data
	}
	data["id"] = reqID
	return data
}

func requestID(req map[string]any) string {
	switch v := req["id"].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}

func sessionParam(req map[string]any) int64 {
	switch v := req["session"].(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func int64Param(req map[string]any, key string) int64 {
	switch v := req[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func rangeParams(req map[string]any) (from, to int, ok bool) {
	f, fok := req["from"].(float64)
	t, tok := req["to"].(float64)
	if !fok || !tok {
		return 0, 0, false
	}
	return int(f), int(t), true
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func contextsParam(req map[string]any) []api.MessageContext {
	items, ok := req["contexts"].([]any)
	if !ok {
		return nil
	}
	out := make([]api.MessageContext, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ctx := api.MessageContext{}
		ctx.Type, _ = m["type"].(string)
		ctx.Name, _ = m["name"].(string)
		ctx.Text, _ = m["text"].(string)
		if ctx.Type != "" {
			out = append(out, ctx)
		}
	}
	return out
}
