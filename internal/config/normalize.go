package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// normalize trims and resolves every definition in place. Relative paths in
// the config file resolve against the project root, not the CLI's working
// directory.
func (p *Project) normalize(problems *problemList) {
	names := make([]string, 0, len(p.processes))
	for name := range p.processes {
		names = append(names, name)
	}
	sort.Strings(names)
	p.order = names

	for _, name := range names {
		spec := p.processes[name]
		spec.Command = strings.TrimSpace(spec.Command)
		spec.Dir = p.resolveDir(spec.Dir, problems)
		spec.StdoutPath = p.resolveLogPath(spec.StdoutPath, problems)
		spec.StderrPath = p.resolveLogPath(spec.StderrPath, problems)
		p.processes[name] = spec
	}

	for name, spec := range p.tasks {
		spec.Command = strings.TrimSpace(spec.Command)
		if spec.Kind == TaskLeaf {
			spec.Dir = p.resolveDir(spec.Dir, problems)
		}
		for i := range spec.Children {
			spec.Children[i] = NormalizeTaskName(spec.Children[i])
		}
		for i := range spec.Processes {
			spec.Processes[i] = strings.TrimSpace(spec.Processes[i])
		}
		p.tasks[name] = spec
	}
}

func (p *Project) resolveDir(dir string, problems *problemList) string {
	if strings.TrimSpace(dir) == "" {
		return p.Root
	}
	expanded, err := expandUser(strings.TrimSpace(dir))
	if err != nil {
		problems.addf("resolve cwd %q: %v", dir, err)
		return p.Root
	}
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(p.Root, expanded)
	}
	return filepath.Clean(expanded)
}

func (p *Project) resolveLogPath(path string, problems *problemList) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	expanded, err := expandUser(strings.TrimSpace(path))
	if err != nil {
		problems.addf("resolve log path %q: %v", path, err)
		return ""
	}
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(p.Root, expanded)
	}
	return filepath.Clean(expanded)
}

func expandUser(pathValue string) (string, error) {
	if !strings.HasPrefix(pathValue, "~") {
		return pathValue, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if pathValue == "~" {
		return home, nil
	}
	if len(pathValue) > 1 && pathValue[1] == '/' {
		return filepath.Join(home, pathValue[2:]), nil
	}
	return pathValue, nil
}
