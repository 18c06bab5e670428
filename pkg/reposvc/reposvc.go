// Package reposvc persists the repository catalogue (§6's "on-disk
// layout": {workspace}/repos.json) and serves as its CRUD boundary. It is
// an in-process stand-in for the external catalogue collaborator spec.md's
// §1 lists out of scope, needed here because the HTTP API (§6) has nothing
// to read repo configs from otherwise. A fsnotify watch reloads the file
// if it changes on disk outside the process, e.g. an operator hand-editing
// repos.json while the server is running.
package reposvc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/levelup-tools/levelup/pkg/logger"
	"github.com/levelup-tools/levelup/pkg/repoutil"
)

var log = logger.New("reposvc")

// RepoConfig is one catalogued repository, matching §6's POST /api/repos
// body plus the derived Name.
type RepoConfig struct {
	Name            string `json:"name"`
	URL             string `json:"url"`
	PostCheckout    string `json:"post_checkout,omitempty"`
	BuildCommand    string `json:"build_command,omitempty"`
	SingleTUCommand string `json:"single_tu_command,omitempty"`
}

// Store is a mutex-guarded repos.json CRUD layer with an optional
// background watch for external edits.
type Store struct {
	path string

	mu    sync.RWMutex
	repos map[string]RepoConfig

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Open loads path (creating an empty catalogue if it doesn't exist yet)
// and returns a ready Store. Call Watch separately to pick up external
// edits while the process runs.
func Open(path string) (*Store, error) {
	s := &Store{path: path, repos: make(map[string]RepoConfig)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s.persistLocked(nil)
	}
	if err != nil {
		return fmt.Errorf("reposvc: reading %s: %w", s.path, err)
	}

	var list []RepoConfig
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("reposvc: parsing %s: %w", s.path, err)
	}

	repos := make(map[string]RepoConfig, len(list))
	for _, r := range list {
		repos[r.Name] = r
	}

	s.mu.Lock()
	s.repos = repos
	s.mu.Unlock()
	return nil
}

// persistLocked writes the given list (or the Store's current contents, if
// list is nil) back to disk. It takes no lock itself: Create, Update and
// Delete call it with s.mu held for writing, while Open and Save call it
// without taking s.mu.
func (s *Store) persistLocked(list []RepoConfig) error {
	if list == nil {
		list = make([]RepoConfig, 0, len(s.repos))
		for _, r := range s.repos {
			list = append(list, r)
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("reposvc: creating workspace dir: %w", err)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("reposvc: encoding %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("reposvc: writing %s: %w", s.path, err)
	}
	return nil
}

// Save rewrites the catalogue file from the Store's current in-memory
// contents, in the canonical on-disk format. Used by the migrate-repos CLI
// subcommand to normalize a hand-edited repos.json after Open has parsed
// it.
func (s *Store) Save() error {
	return s.persistLocked(nil)
}

// List returns every catalogued repository.
func (s *Store) List() []RepoConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RepoConfig, 0, len(s.repos))
	for _, r := range s.repos {
		out = append(out, r)
	}
	return out
}

// Get returns one repository by name.
func (s *Store) Get(name string) (RepoConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.repos[name]
	return r, ok
}

// Create derives a name from url and inserts a new repo config, failing if
// that name is already catalogued.
func (s *Store) Create(url, postCheckout, buildCommand, singleTUCommand string) (RepoConfig, error) {
	name, err := repoutil.ExtractRepoName(url)
	if err != nil {
		return RepoConfig{}, fmt.Errorf("reposvc: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.repos[name]; exists {
		return RepoConfig{}, fmt.Errorf("reposvc: repository %q already catalogued", name)
	}

	r := RepoConfig{
		Name:            name,
		URL:             url,
		PostCheckout:    postCheckout,
		BuildCommand:    buildCommand,
		SingleTUCommand: singleTUCommand,
	}
	s.repos[name] = r
	if err := s.persistLocked(nil); err != nil {
		delete(s.repos, name)
		return RepoConfig{}, err
	}
	return r, nil
}

// Update applies non-empty fields from patch onto the existing config for
// name. An empty field in patch leaves the existing value unchanged.
func (s *Store) Update(name string, patch RepoConfig) (RepoConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.repos[name]
	if !ok {
		return RepoConfig{}, fmt.Errorf("reposvc: repository %q not found", name)
	}
	if patch.URL != "" {
		r.URL = patch.URL
	}
	if patch.PostCheckout != "" {
		r.PostCheckout = patch.PostCheckout
	}
	if patch.BuildCommand != "" {
		r.BuildCommand = patch.BuildCommand
	}
	if patch.SingleTUCommand != "" {
		r.SingleTUCommand = patch.SingleTUCommand
	}
	s.repos[name] = r
	if err := s.persistLocked(nil); err != nil {
		return RepoConfig{}, err
	}
	return r, nil
}

// Delete removes a catalogued repository.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.repos[name]; !ok {
		return fmt.Errorf("reposvc: repository %q not found", name)
	}
	delete(s.repos, name)
	return s.persistLocked(nil)
}

// Watch starts a background fsnotify watch on the catalogue file's
// directory, reloading the in-memory map whenever the file itself is
// written or replaced by something other than this Store (e.g. an
// operator's editor, which typically renames a temp file over the
// original rather than writing it in place). Call Close to stop watching.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reposvc: creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("reposvc: watching %s: %w", filepath.Dir(s.path), err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})
	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	defer close(s.done)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.load(); err != nil {
				log.Printf("reload after external edit failed: path=%s error=%v", s.path, err)
			} else {
				log.Printf("reloaded catalogue after external edit: path=%s", s.path)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watch error: path=%s error=%v", s.path, err)
		}
	}
}

// Close stops the background watch, if one was started.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	<-s.done
	return err
}
