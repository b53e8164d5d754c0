package pattern

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	saveExt         = ".yaml"
	timestampLayout = "2006-01-02_15-04-05"
)

// SaveInfo represents a saved pattern file (for listing)
type SaveInfo struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// Store keeps timestamped pattern saves grouped in project folders.
type Store struct {
	Root string
}

// DefaultStore returns the store under ~/.config/go-flux/projects
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Store{Root: filepath.Join(home, ".config", "go-flux", "projects")}, nil
}

func (s *Store) projectDir(project string) string {
	return filepath.Join(s.Root, project)
}

// ListProjects returns all project folder names
func (s *Store) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var projects []string
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// ListSaves returns timestamped saves for a project, newest first
func (s *Store) ListSaves(project string) ([]SaveInfo, error) {
	entries, err := os.ReadDir(s.projectDir(project))
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, err
	}

	var saves []SaveInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), saveExt) {
			continue
		}
		info, ok := parseSaveName(entry.Name())
		if !ok {
			continue
		}
		saves = append(saves, info)
	}

	sort.Slice(saves, func(i, j int) bool {
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})
	return saves, nil
}

// parseSaveName parses 2024-01-15_14-30-00.yaml or 2024-01-15_14-30-00_name.yaml
func parseSaveName(filename string) (SaveInfo, bool) {
	base := strings.TrimSuffix(filename, saveExt)
	if len(base) < len(timestampLayout) {
		return SaveInfo{}, false
	}
	ts, err := time.Parse(timestampLayout, base[:len(timestampLayout)])
	if err != nil {
		return SaveInfo{}, false
	}
	info := SaveInfo{Filename: filename, Timestamp: ts}
	if rest := base[len(timestampLayout):]; len(rest) > 1 && rest[0] == '_' {
		info.Name = rest[1:]
	}
	return info, true
}

// Save writes p into the project with the current timestamp and an optional
// name. It returns the file name of the new save.
func (s *Store) Save(project, name string, p *Pattern) (string, error) {
	if project == "" {
		project = "untitled"
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	dir := s.projectDir(project)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		return "", err
	}

	filename := time.Now().Format(timestampLayout)
	if name != "" {
		filename += "_" + sanitizeFilename(name)
	}
	filename += saveExt
	if err := os.WriteFile(filepath.Join(dir, filename), buf.Bytes(), 0644); err != nil {
		return "", err
	}
	return filename, nil
}

// Load reads a specific save (or the most recent if filename is empty)
func (s *Store) Load(project, filename string) (Pattern, error) {
	if filename == "" {
		saves, err := s.ListSaves(project)
		if err != nil || len(saves) == 0 {
			return Pattern{}, fmt.Errorf("no saves found in project %s", project)
		}
		filename = saves[0].Filename
	}

	f, err := os.Open(filepath.Join(s.projectDir(project), filename))
	if err != nil {
		return Pattern{}, err
	}
	defer f.Close()

	p, err := Decode(f)
	if err != nil {
		return Pattern{}, fmt.Errorf("load %s/%s: %w", project, filename, err)
	}
	return p, nil
}

// DeleteSave deletes a specific save file
func (s *Store) DeleteSave(project, filename string) error {
	return os.Remove(filepath.Join(s.projectDir(project), filename))
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	r := strings.NewReplacer(
		" ", "-", "/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	)
	return r.Replace(name)
}
