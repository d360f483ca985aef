package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// Tool names offered to the agent.
const (
	toolReadFile   = "read_file"
	toolWriteFile  = "write_file"
	toolListDir    = "list_dir"
	toolRunCommand = "run_command"
)

const (
	maxFileBytes   = 256 << 10 // per read_file response
	maxOutputBytes = 64 << 10  // per run_command response
	commandTimeout = 5 * time.Minute
)

// workspace executes tool calls against the project and spec
// directories. Paths outside both are rejected.
type workspace struct {
	projectDir string
	specDir    string
}

func toolDefs() []anthropic.ToolUnionParam {
	pathProp := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}

	tools := []anthropic.ToolParam{
		{
			Name:        toolReadFile,
			Description: anthropic.String("Read a file. Paths are relative to the working directory."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{
					"path": pathProp("File to read"),
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        toolWriteFile,
			Description: anthropic.String("Create or overwrite a file. Parent directories are created as needed."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{
					"path":    pathProp("File to write"),
					"content": map[string]any{"type": "string", "description": "Full file content"},
				},
				Required: []string{"path", "content"},
			},
		},
		{
			Name:        toolListDir,
			Description: anthropic.String("List a directory. Directories are suffixed with /."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{
					"path": pathProp("Directory to list; defaults to the working directory"),
				},
			},
		},
		{
			Name:        toolRunCommand,
			Description: anthropic.String("Run a shell command in the working directory and return its combined output."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{
					"command": map[string]any{"type": "string", "description": "Command to run with sh -c"},
				},
				Required: []string{"command"},
			},
		},
	}

	defs := make([]anthropic.ToolUnionParam, 0, len(tools))
	for i := range tools {
		defs = append(defs, anthropic.ToolUnionParam{OfTool: &tools[i]})
	}
	return defs
}

// execute runs one tool call. Failures are reported to the agent as
// error results, never as Go errors, so it can correct course.
func (w *workspace) execute(ctx context.Context, name string, input []byte) (string, bool) {
	switch name {
	case toolReadFile:
		return w.readFile(input)
	case toolWriteFile:
		return w.writeFile(input)
	case toolListDir:
		return w.listDir(input)
	case toolRunCommand:
		return w.runCommand(ctx, input)
	default:
		return fmt.Sprintf("unknown tool: %s", name), true
	}
}

func (w *workspace) readFile(input []byte) (string, bool) {
	var args struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return fmt.Sprintf("invalid input: %v", err), true
	}
	path, err := w.resolve(args.Path)
	if err != nil {
		return err.Error(), true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err.Error(), true
	}
	if len(data) > maxFileBytes {
		return string(data[:maxFileBytes]) + "\n[truncated]", false
	}
	return string(data), false
}

func (w *workspace) writeFile(input []byte) (string, bool) {
	var args struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return fmt.Sprintf("invalid input: %v", err), true
	}
	path, err := w.resolve(args.Path)
	if err != nil {
		return err.Error(), true
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err.Error(), true
	}
	if err := os.WriteFile(path, []byte(args.Content), 0644); err != nil {
		return err.Error(), true
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path), false
}

func (w *workspace) listDir(input []byte) (string, bool) {
	var args struct {
		Path string `json:"path"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return fmt.Sprintf("invalid input: %v", err), true
		}
	}
	if args.Path == "" {
		args.Path = "."
	}
	path, err := w.resolve(args.Path)
	if err != nil {
		return err.Error(), true
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return err.Error(), true
	}
	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(entry.Name())
		if entry.IsDir() {
			b.WriteString("/")
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "(empty)", false
	}
	return b.String(), false
}

func (w *workspace) runCommand(ctx context.Context, input []byte) (string, bool) {
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return fmt.Sprintf("invalid input: %v", err), true
	}
	if strings.TrimSpace(args.Command) == "" {
		return "command is required", true
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", args.Command)
	cmd.Dir = w.projectDir
	out, err := cmd.CombinedOutput()
	result := string(out)
	if len(result) > maxOutputBytes {
		result = result[:maxOutputBytes] + "\n[truncated]"
	}
	if err != nil {
		if result != "" {
			result += "\n"
		}
		return result + fmt.Sprintf("command failed: %v", err), true
	}
	if result == "" {
		return "(no output)", false
	}
	return result, false
}

// resolve maps a tool path onto the filesystem. Relative paths are
// joined to the project directory; the result must stay inside the
// project or spec directory.
func (w *workspace) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.projectDir, abs)
	}
	abs = filepath.Clean(abs)

	for _, root := range []string{w.projectDir, w.specDir} {
		if root == "" {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("path %s is outside the working directory", path)
}
