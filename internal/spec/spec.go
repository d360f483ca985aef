// Package spec locates spec directories under a project and extracts
// the task description for a run.
package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SpecFile is the per-spec description file.
const SpecFile = "spec.md"

// taskHeadLimit bounds how much of spec.md is used as the task when no
// "## Task" section exists.
const taskHeadLimit = 500

// Roots lists the recognized spec roots relative to the project
// directory, in search order. New spec directories are created under
// the first root.
var Roots = []string{
	filepath.Join(".autobuild", "specs"),
	filepath.Join("autobuild", "specs"),
}

// Dir locates the directory for the given spec id. A directory matches
// by exact name or by an "<id>-" prefix (ids are often followed by a
// slug). When no root holds a match, the directory is created under the
// first root; created reports that case.
func Dir(projectDir, id string) (dir string, created bool, err error) {
	if id == "" {
		return "", false, fmt.Errorf("spec id cannot be empty")
	}

	for _, root := range Roots {
		rootPath := filepath.Join(projectDir, root)
		entries, err := os.ReadDir(rootPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", false, fmt.Errorf("reading spec root %s: %w", rootPath, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := entry.Name()
			if name == id || strings.HasPrefix(name, id+"-") {
				return filepath.Join(rootPath, name), false, nil
			}
		}
	}

	dir = filepath.Join(projectDir, Roots[0], id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", false, fmt.Errorf("creating spec directory: %w", err)
	}
	return dir, true, nil
}

// QuickID returns a fresh spec id for an inline task.
func QuickID() string {
	return fmt.Sprintf("quick-%d", time.Now().Unix())
}

// Task returns the task description for a run. An inline task wins;
// otherwise the spec.md "## Task" section is used, falling back to the
// head of the file.
func Task(specDir, inline string) (string, error) {
	if trimmed := strings.TrimSpace(inline); trimmed != "" {
		return trimmed, nil
	}

	path := filepath.Join(specDir, SpecFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no task given and %s does not exist\n"+
				"  Pass --task \"...\" or create %s with a \"## Task\" section", path, SpecFile)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	if section := taskSection(string(data)); section != "" {
		return section, nil
	}

	head := string(data)
	if len(head) > taskHeadLimit {
		head = head[:taskHeadLimit]
	}
	head = strings.TrimSpace(head)
	if head == "" {
		return "", fmt.Errorf("%s is empty\n"+
			"  Pass --task \"...\" or add a \"## Task\" section", path)
	}
	return head, nil
}

// taskSection extracts the "## Task" section body, up to the next
// second-level heading.
func taskSection(content string) string {
	var section []string
	in := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !in {
			if trimmed == "## Task" {
				in = true
			}
			continue
		}
		if strings.HasPrefix(trimmed, "## ") {
			break
		}
		section = append(section, line)
	}
	return strings.TrimSpace(strings.Join(section, "\n"))
}
