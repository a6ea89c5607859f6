package sandbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/layerforge/layerforge/internal/domain"
)

// Tool names surfaced to the model.
const (
	ToolReadFile        = domain.ToolReadFile
	ToolWriteFile       = domain.ToolWriteFile
	ToolReplaceText     = domain.ToolReplaceText
	ToolListFiles       = domain.ToolListFiles
	ToolFileExists      = domain.ToolFileExists
	ToolCreateDirectory = domain.ToolCreateDirectory
	ToolBackupFile      = domain.ToolBackupFile
)

var filePathParam = domain.ToolParam{
	Name: "file_path", Type: "string", Required: true,
	Description: "Path relative to the project root.",
}

var schemas = []domain.ToolSchema{
	{
		Name:        ToolReadFile,
		Description: "Read a text file from the project.",
		Params:      []domain.ToolParam{filePathParam},
	},
	{
		Name:        ToolWriteFile,
		Description: "Write a file, creating parent directories. An existing file is backed up first.",
		Params: []domain.ToolParam{
			filePathParam,
			{Name: "content", Type: "string", Required: true, Description: "Complete file content to write."},
			{Name: "mode", Type: "string", Enum: []string{"overwrite", "append"}, Description: "overwrite (default) or append."},
		},
	},
	{
		Name:        ToolReplaceText,
		Description: "Replace exact text inside an existing file. The file is backed up first.",
		Params: []domain.ToolParam{
			filePathParam,
			{Name: "old_text", Type: "string", Required: true, Description: "Exact text currently in the file."},
			{Name: "new_text", Type: "string", Required: true, Description: "Replacement text."},
			{Name: "occurrence", Type: "string", Enum: []string{"first", "last", "all"}, Description: "Which matches to replace; first by default."},
		},
	},
	{
		Name:        ToolListFiles,
		Description: "List files under a directory matching a glob pattern. ** matches any number of directories.",
		Params: []domain.ToolParam{
			{Name: "directory", Type: "string", Description: "Directory relative to the project root; defaults to the root."},
			{Name: "pattern", Type: "string", Description: "Glob such as *.java or **/dto/*.java; defaults to *."},
		},
	},
	{
		Name:        ToolFileExists,
		Description: "Check whether a file or directory exists.",
		Params:      []domain.ToolParam{filePathParam},
	},
	{
		Name:        ToolCreateDirectory,
		Description: "Create a directory and any missing parents.",
		Params: []domain.ToolParam{
			{Name: "directory", Type: "string", Required: true, Description: "Directory relative to the project root."},
		},
	},
	{
		Name:        ToolBackupFile,
		Description: "Copy a file into this run's backup directory.",
		Params:      []domain.ToolParam{filePathParam},
	},
}

// Schemas returns the tool schemas in a fixed order.
func (t *Tool) Schemas() []domain.ToolSchema {
	out := make([]domain.ToolSchema, len(schemas))
	copy(out, schemas)
	return out
}

// Execute dispatches one tool call by name.
func (t *Tool) Execute(ctx context.Context, name string, args map[string]any) (domain.ToolOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.ToolOutcome{}, err
	}
	switch name {
	case ToolReadFile:
		p, err := required(args, "file_path")
		if err != nil {
			return domain.ToolOutcome{}, err
		}
		content, err := t.Read(p)
		if err != nil {
			return domain.ToolOutcome{}, err
		}
		return domain.ToolOutcome{Output: content}, nil

	case ToolWriteFile:
		p, err := required(args, "file_path")
		if err != nil {
			return domain.ToolOutcome{}, err
		}
		content, ok := domain.ArgString(args, "content")
		if !ok {
			return domain.ToolOutcome{}, fmt.Errorf("%w: missing argument content", domain.ErrValue)
		}
		mode, _ := domain.ArgString(args, "mode")
		res, err := t.Write(p, content, WriteMode(strings.ToLower(mode)))
		if err != nil {
			return domain.ToolOutcome{}, err
		}
		out := fmt.Sprintf("wrote %d bytes to %s (%s)", res.Bytes, res.Path, res.Summary)
		if res.Backup != "" {
			out += "; previous version saved to " + res.Backup
		}
		return domain.ToolOutcome{Output: out, Changed: []string{res.Path}}, nil

	case ToolReplaceText:
		p, err := required(args, "file_path")
		if err != nil {
			return domain.ToolOutcome{}, err
		}
		oldText, err := required(args, "old_text")
		if err != nil {
			return domain.ToolOutcome{}, err
		}
		newText, ok := domain.ArgString(args, "new_text")
		if !ok {
			return domain.ToolOutcome{}, fmt.Errorf("%w: missing argument new_text", domain.ErrValue)
		}
		occ, _ := domain.ArgString(args, "occurrence")
		res, err := t.Replace(p, oldText, newText, Occurrence(strings.ToLower(occ)))
		if err != nil {
			return domain.ToolOutcome{}, err
		}
		out := fmt.Sprintf("replaced %d occurrence(s) in %s (%s); previous version saved to %s",
			res.Replaced, res.Path, res.Summary, res.Backup)
		return domain.ToolOutcome{Output: out, Changed: []string{res.Path}}, nil

	case ToolListFiles:
		dir, _ := domain.ArgString(args, "directory")
		pattern, _ := domain.ArgString(args, "pattern")
		files, err := t.List(dir, pattern)
		if err != nil {
			return domain.ToolOutcome{}, err
		}
		if len(files) == 0 {
			return domain.ToolOutcome{Output: "no files match"}, nil
		}
		return domain.ToolOutcome{Output: strings.Join(files, "\n")}, nil

	case ToolFileExists:
		p, err := required(args, "file_path")
		if err != nil {
			return domain.ToolOutcome{}, err
		}
		return domain.ToolOutcome{Output: fmt.Sprintf("%t", t.Exists(p))}, nil

	case ToolCreateDirectory:
		dir, err := required(args, "directory")
		if err != nil {
			return domain.ToolOutcome{}, err
		}
		rel, err := t.Mkdir(dir)
		if err != nil {
			return domain.ToolOutcome{}, err
		}
		return domain.ToolOutcome{Output: "directory ready: " + rel}, nil

	case ToolBackupFile:
		p, err := required(args, "file_path")
		if err != nil {
			return domain.ToolOutcome{}, err
		}
		backup, err := t.Backup(p)
		if err != nil {
			return domain.ToolOutcome{}, err
		}
		return domain.ToolOutcome{Output: "backed up to " + backup}, nil
	}
	return domain.ToolOutcome{}, fmt.Errorf("%w: %s", domain.ErrUnknownTool, name)
}

func required(args map[string]any, key string) (string, error) {
	v, ok := domain.ArgString(args, key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: missing argument %s", domain.ErrValue, key)
	}
	return v, nil
}
