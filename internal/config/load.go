package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// TOMLFileName is the primary configuration file looked up in the project root.
const TOMLFileName = "drover.toml"

// ProcfileName is the fallback configuration file.
const ProcfileName = "Procfile"

const (
	defaultGraceSeconds = 5
	defaultLogLevel     = "info"
)

var (
	// ErrNoConfig indicates the project root contains neither a drover.toml
	// nor a Procfile.
	ErrNoConfig = errors.New("no drover.toml or Procfile found")
	// ErrEmptyProcfile indicates a Procfile with no process entries.
	ErrEmptyProcfile = errors.New("Procfile defines no processes")
)

// Load resolves root, locates its configuration file (drover.toml first,
// Procfile second), and returns the validated project.
func Load(root string) (*Project, error) {
	canonical, err := CanonicalRoot(root)
	if err != nil {
		return nil, err
	}

	tomlPath := filepath.Join(canonical, TOMLFileName)
	if _, err := os.Stat(tomlPath); err == nil {
		return loadTOML(canonical, tomlPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", TOMLFileName, err)
	}

	procfilePath := filepath.Join(canonical, ProcfileName)
	if _, err := os.Stat(procfilePath); err == nil {
		return loadProcfile(canonical, procfilePath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", ProcfileName, err)
	}

	return nil, fmt.Errorf("%w in %s", ErrNoConfig, canonical)
}

// LoadFile loads an explicitly chosen configuration file for the given root.
// Files named Procfile parse in Procfile syntax; everything else is TOML.
func LoadFile(root, path string) (*Project, error) {
	canonical, err := CanonicalRoot(root)
	if err != nil {
		return nil, err
	}
	expanded, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	if filepath.Base(expanded) == ProcfileName {
		return loadProcfile(canonical, expanded)
	}
	return loadTOML(canonical, expanded)
}

// CanonicalRoot resolves a project root to its canonical absolute form, with
// symlinks evaluated, so the same directory always yields the same identity.
func CanonicalRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	expanded, err := expandPath(root)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve project root %s: %w", expanded, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("stat project root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project root %s is not a directory", resolved)
	}
	return resolved, nil
}

// rawTOML mirrors the file layout before variant coercion. Process and task
// bodies are either strings (command shorthand) or tables, so they decode
// through any.
type rawTOML struct {
	Processes map[string]any `toml:"processes"`
	Tasks     map[string]any `toml:"tasks"`
	Settings  rawSettings    `toml:"settings"`
}

type rawSettings struct {
	GraceSeconds *int   `toml:"grace_seconds"`
	LogLevel     string `toml:"log_level"`
}

func loadTOML(root, path string) (*Project, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var raw rawTOML
	decoder := toml.NewDecoder(file)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	problems := &problemList{}

	project := &Project{
		Root:      root,
		Source:    path,
		Format:    FormatTOML,
		processes: make(map[string]ProcessSpec, len(raw.Processes)),
		tasks:     make(map[string]TaskSpec, len(raw.Tasks)),
	}

	for name, body := range raw.Processes {
		spec, ok := processFromTOML(name, body, problems)
		if !ok {
			continue
		}
		project.processes[spec.Name] = spec
	}

	for name, body := range raw.Tasks {
		collectTasks(name, body, project.tasks, problems)
	}

	project.Settings = settingsFromRaw(raw.Settings, problems)

	return finishLoad(project, problems)
}

func loadProcfile(root, path string) (*Project, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read Procfile: %w", err)
	}

	problems := &problemList{}
	project := &Project{
		Root:      root,
		Source:    path,
		Format:    FormatProcfile,
		processes: make(map[string]ProcessSpec),
		tasks:     map[string]TaskSpec{},
	}

	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		name, command, found := strings.Cut(trimmed, ":")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		command = strings.TrimSpace(command)
		if _, exists := project.processes[name]; exists {
			problems.addf("Procfile: duplicate process %q", name)
			continue
		}
		project.processes[name] = ProcessSpec{Name: name, Command: command}
	}

	if len(project.processes) == 0 {
		return nil, ErrEmptyProcfile
	}

	project.Settings = settingsFromRaw(rawSettings{}, problems)

	return finishLoad(project, problems)
}

func finishLoad(project *Project, problems *problemList) (*Project, error) {
	project.normalize(problems)
	project.validate(problems)
	if err := problems.err(); err != nil {
		return nil, err
	}
	return project, nil
}

func settingsFromRaw(raw rawSettings, problems *problemList) Settings {
	settings := Settings{GraceSeconds: defaultGraceSeconds, LogLevel: defaultLogLevel}
	if raw.GraceSeconds != nil {
		if *raw.GraceSeconds < 0 {
			problems.addf("settings.grace_seconds: must not be negative")
		} else {
			settings.GraceSeconds = *raw.GraceSeconds
		}
	}
	if level := strings.TrimSpace(raw.LogLevel); level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "error":
			settings.LogLevel = strings.ToLower(level)
		default:
			problems.addf("settings.log_level: unsupported value %q", raw.LogLevel)
		}
	}
	return settings
}

func processFromTOML(name string, body any, problems *problemList) (ProcessSpec, bool) {
	spec := ProcessSpec{Name: strings.TrimSpace(name)}
	switch value := body.(type) {
	case string:
		spec.Command = value
	case map[string]any:
		for key, field := range value {
			str, strOK := field.(string)
			switch key {
			case "cmd":
				if !strOK {
					problems.addf("processes.%s: cmd must be a string", name)
					return spec, false
				}
				spec.Command = str
			case "cwd":
				if !strOK {
					problems.addf("processes.%s: cwd must be a string", name)
					return spec, false
				}
				spec.Dir = str
			case "stdout":
				if !strOK {
					problems.addf("processes.%s: stdout must be a string", name)
					return spec, false
				}
				spec.StdoutPath = str
			case "stderr":
				if !strOK {
					problems.addf("processes.%s: stderr must be a string", name)
					return spec, false
				}
				spec.StderrPath = str
			default:
				problems.addf("processes.%s: unknown key %q", name, key)
				return spec, false
			}
		}
	default:
		problems.addf("processes.%s: expected a command string or a table", name)
		return spec, false
	}
	return spec, true
}

// collectTasks walks one entry of the [tasks] table. A nested table with no
// definition keys is a namespace, so [tasks.build.assets] defines the task
// build.assets just like [tasks."build.assets"] does.
func collectTasks(name string, body any, out map[string]TaskSpec, problems *problemList) {
	if table, ok := body.(map[string]any); ok && isTaskNamespace(table) {
		for child, childBody := range table {
			collectTasks(name+"."+child, childBody, out, problems)
		}
		return
	}
	spec, ok := taskFromTOML(name, body, problems)
	if !ok {
		return
	}
	if _, exists := out[spec.Name]; exists {
		problems.addf("tasks.%s: duplicate task name after normalization", spec.Name)
		return
	}
	out[spec.Name] = spec
}

func isTaskNamespace(table map[string]any) bool {
	if len(table) == 0 {
		return false
	}
	for key := range table {
		switch key {
		case "cmd", "cwd", "processes", "group", "parallel":
			return false
		}
	}
	return true
}

func taskFromTOML(name string, body any, problems *problemList) (TaskSpec, bool) {
	spec := TaskSpec{Name: NormalizeTaskName(name)}
	switch value := body.(type) {
	case string:
		spec.Kind = TaskLeaf
		spec.Command = value
	case map[string]any:
		var haveCmd, haveProcesses, haveGroup bool
		for key, field := range value {
			switch key {
			case "cmd":
				str, ok := field.(string)
				if !ok {
					problems.addf("tasks.%s: cmd must be a string", name)
					return spec, false
				}
				spec.Command = str
				haveCmd = true
			case "cwd":
				str, ok := field.(string)
				if !ok {
					problems.addf("tasks.%s: cwd must be a string", name)
					return spec, false
				}
				spec.Dir = str
			case "processes":
				list, ok := stringList(field)
				if !ok {
					problems.addf("tasks.%s: processes must be an array of strings", name)
					return spec, false
				}
				spec.Processes = list
				haveProcesses = true
			case "group":
				list, ok := stringList(field)
				if !ok {
					problems.addf("tasks.%s: group must be an array of strings", name)
					return spec, false
				}
				spec.Children = list
				haveGroup = true
			case "parallel":
				flag, ok := field.(bool)
				if !ok {
					problems.addf("tasks.%s: parallel must be a boolean", name)
					return spec, false
				}
				spec.Parallel = flag
			default:
				problems.addf("tasks.%s: unknown key %q", name, key)
				return spec, false
			}
		}

		switch {
		case haveCmd && !haveProcesses && !haveGroup:
			spec.Kind = TaskLeaf
		case haveProcesses && !haveCmd && !haveGroup:
			spec.Kind = TaskProcesses
		case haveGroup && !haveCmd && !haveProcesses:
			spec.Kind = TaskGroup
		case !haveCmd && !haveProcesses && !haveGroup:
			problems.addf("tasks.%s: one of cmd, processes, or group is required", name)
			return spec, false
		default:
			problems.addf("tasks.%s: cmd, processes, and group are mutually exclusive", name)
			return spec, false
		}

		if spec.Parallel && spec.Kind != TaskGroup {
			problems.addf("tasks.%s: parallel applies only to group tasks", name)
			return spec, false
		}
		if spec.Dir != "" && spec.Kind != TaskLeaf {
			problems.addf("tasks.%s: cwd applies only to command tasks", name)
			return spec, false
		}
	default:
		problems.addf("tasks.%s: expected a command string or a table", name)
		return spec, false
	}
	return spec, true
}

func stringList(value any) ([]string, bool) {
	items, ok := value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, str)
	}
	return out, true
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	expanded, err := expandUser(pathValue)
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	absolute, err := filepath.Abs(filepath.Clean(expanded))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
