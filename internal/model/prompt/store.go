package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed resources
var resources embed.FS

var (
	ErrPromptNotFound  = errors.New("prompt not found")
	ErrMessageNotFound = errors.New("message not found")
)

// Store exposes static prompt and message text to the feature handlers.
type Store interface {
	Prompt(key string) (string, error)
	Message(key string) (string, error)
	Catalogue() Catalogue
	FindPersona(id string) (Persona, bool)
	FindGPTTopic(id string) (Topic, bool)
	FindQuizTopic(id string) (Topic, bool)
	FindBusinessCategory(id string) (Topic, bool)
}

// FSStore implements Store on top of an fs.FS laid out as
// manifest.yaml, prompts/<key>.txt and messages/<key>.txt.
type FSStore struct {
	catalogue Catalogue
	prompts   map[string]string
	messages  map[string]string
}

// Default 返回内嵌资源构建的 Store。
func Default() (*FSStore, error) {
	sub, err := fs.Sub(resources, "resources")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Load reads every prompt and message eagerly so lookups never touch the filesystem.
func Load(fsys fs.FS) (*FSStore, error) {
	raw, err := fs.ReadFile(fsys, "manifest.yaml")
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var catalogue Catalogue
	if err := yaml.Unmarshal(raw, &catalogue); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	prompts, err := readDir(fsys, "prompts")
	if err != nil {
		return nil, err
	}
	messages, err := readDir(fsys, "messages")
	if err != nil {
		return nil, err
	}

	for _, p := range catalogue.Personas {
		if _, ok := prompts[p.Prompt]; !ok {
			return nil, fmt.Errorf("persona %s references missing prompt %q", p.ID, p.Prompt)
		}
	}

	return &FSStore{catalogue: catalogue, prompts: prompts, messages: messages}, nil
}

func readDir(fsys fs.FS, dir string) (map[string]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".txt" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", dir, entry.Name(), err)
		}
		out[strings.TrimSuffix(entry.Name(), ".txt")] = strings.TrimSpace(string(data))
	}
	return out, nil
}

// Prompt returns the system prompt stored under key.
func (s *FSStore) Prompt(key string) (string, error) {
	text, ok := s.prompts[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPromptNotFound, key)
	}
	return text, nil
}

// Message returns the user-facing message stored under key.
func (s *FSStore) Message(key string) (string, error) {
	text, ok := s.messages[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMessageNotFound, key)
	}
	return text, nil
}

// Catalogue returns a copy of the manifest.
func (s *FSStore) Catalogue() Catalogue {
	return Catalogue{
		Personas:           append([]Persona(nil), s.catalogue.Personas...),
		GPTTopics:          append([]Topic(nil), s.catalogue.GPTTopics...),
		QuizTopics:         append([]Topic(nil), s.catalogue.QuizTopics...),
		BusinessCategories: append([]Topic(nil), s.catalogue.BusinessCategories...),
	}
}

// FindPersona looks up a persona by identifier.
func (s *FSStore) FindPersona(id string) (Persona, bool) {
	for _, item := range s.catalogue.Personas {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

func (s *FSStore) FindGPTTopic(id string) (Topic, bool) {
	return findTopic(s.catalogue.GPTTopics, id)
}

func (s *FSStore) FindQuizTopic(id string) (Topic, bool) {
	return findTopic(s.catalogue.QuizTopics, id)
}

func (s *FSStore) FindBusinessCategory(id string) (Topic, bool) {
	return findTopic(s.catalogue.BusinessCategories, id)
}

func findTopic(items []Topic, id string) (Topic, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
	}
	return Topic{}, false
}
