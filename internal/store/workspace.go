/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"blockcanvas/internal/domain"
	applog "blockcanvas/internal/log"

	"github.com/google/uuid"
)

const (
	// ProjectsFileName holds the full project collection.
	ProjectsFileName = "projects.json"
	// SessionFileName holds the current-project identifier.
	SessionFileName = "session.json"
	BackupsDirName  = "backups"
)

type sessionRecord struct {
	CurrentID string `json:"currentId"`
}

// Open loads the workspace rooted at dir, seeding a default project when the
// directory is fresh or its files are missing. The two durable records
// (project collection, current-project id) are read independently; a
// corrupt projects file falls back to the latest timestamped backup before
// giving up.
func Open(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	s := &Store{
		root: root,
		log:  applog.WithComponent("store"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	projects, err := readProjects(s.root, s.log)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		def := newProject("My Canvas", true)
		projects = []domain.Project{def}
	}
	s.ws = domain.Workspace{Projects: projects, CurrentID: readCurrentID(s.root)}
	if _, ok := s.findProject(s.ws.CurrentID); !ok {
		s.ws.CurrentID = s.defaultProject().ID
	}
	// make the seeded state durable immediately so a crash-free first run
	// and a reloaded run observe the same files
	return s.persist()
}

func readProjects(root string, l *slog.Logger) ([]domain.Project, error) {
	path := filepath.Join(root, ProjectsFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read projects: %w", err)
	}
	var projects []domain.Project
	if uerr := json.Unmarshal(b, &projects); uerr != nil {
		l.Warn("projects file corrupt, trying latest backup", slog.Any("err", uerr))
		restored, berr := readLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("parse projects: %w; backup attempt: %v", uerr, berr)
		}
		return restored, nil
	}
	return projects, nil
}

func readCurrentID(root string) string {
	b, err := os.ReadFile(filepath.Join(root, SessionFileName))
	if err != nil {
		return ""
	}
	var rec sessionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return ""
	}
	return rec.CurrentID
}

func newProject(name string, isDefault bool) domain.Project {
	return domain.Project{
		ID:        uuid.NewString(),
		Name:      name,
		Nodes:     []domain.Node{},
		Blocks:    domain.BuiltInTemplates(),
		IsDefault: isDefault,
	}
}

// persist writes both durable records with transactional semantics and a
// timestamped backup of the previous project collection. Callers must hold
// the store mutex (or be in single-threaded setup).
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.ws.Projects, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal projects: %w", err)
	}
	data = append(data, '\n')

	ppath := filepath.Join(s.root, ProjectsFileName)
	if _, statErr := os.Stat(ppath); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bpath := filepath.Join(s.root, BackupsDirName, fmt.Sprintf("%s.%s.bak", ProjectsFileName, stamp))
		if cerr := copyFile(ppath, bpath); cerr != nil {
			return fmt.Errorf("backup projects: %w", cerr)
		}
	}
	if err := replaceFile(ppath, data); err != nil {
		return fmt.Errorf("write projects: %w", err)
	}

	sb, err := json.Marshal(sessionRecord{CurrentID: s.ws.CurrentID})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := replaceFile(filepath.Join(s.root, SessionFileName), append(sb, '\n')); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// replaceFile writes data to a temp file in the target directory, fsyncs it,
// then renames it over the target so readers never observe a torn write.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return err
	}
	// Windows cannot rename over an existing file
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return err
	}
	return nil
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

func readLatestBackup(root string) ([]domain.Project, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ProjectsFileName+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	b, err := os.ReadFile(candidates[len(candidates)-1])
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	var projects []domain.Project
	if err := json.Unmarshal(b, &projects); err != nil {
		return nil, fmt.Errorf("parse latest backup: %w", err)
	}
	return projects, nil
}

// AutosaveCrashSnapshot writes the in-memory project collection to a
// distinctly named file under backups so a panicking process leaves the last
// known state behind even if the regular files are suspect.
func AutosaveCrashSnapshot(s *Store) (string, error) {
	if s == nil {
		return "", errors.New("nil store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(s.ws.Projects, "", "  ")
	if err != nil {
		return "", err
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(s.root, BackupsDirName, fmt.Sprintf("projects-crash-%s.json", stamp))
	if err := writeFileSync(path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}
