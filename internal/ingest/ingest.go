// Package ingest loads a directory of feedback exports into an analysis input.
//
// Layout:
//
//	tickets*.csv|json|yaml      support tickets
//	nps*, csat*                 survey responses
//	playstore*, reviews*        store reviews
//	instagram*, linkedin*       social posts
//	team.json|yaml|yml          team members
//	context/*.md|txt            business context documents
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/kepler/internal/feedback"
	"github.com/MikeSquared-Agency/kepler/internal/normalize"
)

// ContextDir holds business context documents.
const ContextDir = "context"

var kindPrefixes = []struct {
	prefix string
	kind   feedback.Kind
}{
	{"tickets", feedback.KindTicket},
	{"ticket", feedback.KindTicket},
	{"nps", feedback.KindNPS},
	{"csat", feedback.KindCSAT},
	{"playstore", feedback.KindPlayStore},
	{"play_store", feedback.KindPlayStore},
	{"reviews", feedback.KindPlayStore},
	{"instagram", feedback.KindInstagram},
	{"linkedin", feedback.KindLinkedIn},
}

// FileSummary describes one loaded feedback file.
type FileSummary struct {
	Path    string        `json:"path"`
	Kind    feedback.Kind `json:"kind"`
	Records int           `json:"records"`
}

// Skipped is a file that was recognized but could not be used.
type Skipped struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (s Skipped) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"path": s.Path, "error": s.Err.Error()})
}

type Result struct {
	Input   feedback.Input `json:"input"`
	Files   []FileSummary  `json:"files"`
	Skipped []Skipped      `json:"skipped,omitempty"`
}

// KindForFile maps a file name onto a feedback kind by prefix.
func KindForFile(name string) (feedback.Kind, bool) {
	base := strings.ToLower(filepath.Base(name))
	for _, kp := range kindPrefixes {
		if strings.HasPrefix(base, kp.prefix) {
			return kp.kind, true
		}
	}
	return "", false
}

// LoadDir reads every recognized file in dir. Files that fail to decode are
// reported in Skipped; only an unreadable dir is an error. sourceID defaults to
// the dir name.
func LoadDir(dir, sourceID string) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	if sourceID == "" {
		sourceID = filepath.Base(filepath.Clean(dir))
	}

	res := &Result{}
	seen := make(map[feedback.Kind]bool)
	namespaces := make(map[string]bool)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))

		if strings.EqualFold(stem, "team") {
			members, err := loadTeam(path)
			if err != nil {
				res.Skipped = append(res.Skipped, Skipped{Path: path, Err: err})
				continue
			}
			res.Input.Team = append(res.Input.Team, members...)
			continue
		}

		kind, ok := KindForFile(e.Name())
		if !ok {
			continue
		}
		format, err := normalize.FormatFromPath(path)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: path, Err: err})
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: path, Err: err})
			continue
		}

		// A second file of the same kind gets its own id namespace.
		src := sourceID
		if seen[kind] {
			src = sourceID + "-" + stem
			for i := 2; namespaces[src]; i++ {
				src = fmt.Sprintf("%s-%s-%d", sourceID, stem, i)
			}
		}
		n, err := normalize.NormalizeInto(&res.Input, raw, format, kind, src)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: path, Err: err})
			continue
		}
		seen[kind] = true
		namespaces[src] = true
		res.Files = append(res.Files, FileSummary{Path: path, Kind: kind, Records: n})
	}

	contexts, skipped := loadContexts(filepath.Join(dir, ContextDir))
	res.Input.BusinessContexts = append(res.Input.BusinessContexts, contexts...)
	res.Skipped = append(res.Skipped, skipped...)

	return res, nil
}

func loadContexts(dir string) ([]feedback.BusinessContext, []Skipped) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, []Skipped{{Path: dir, Err: err}}
	}

	var (
		contexts []feedback.BusinessContext
		skipped  []Skipped
	)
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".md" && ext != ".txt") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			skipped = append(skipped, Skipped{Path: path, Err: err})
			continue
		}
		content := strings.TrimSpace(string(raw))
		if content == "" {
			continue
		}
		contexts = append(contexts, feedback.BusinessContext{
			Name:    strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Content: content,
		})
	}
	sort.SliceStable(contexts, func(i, j int) bool { return contexts[i].Name < contexts[j].Name })
	return contexts, skipped
}

// loadTeam accepts a bare list of members or an object with a "team" list.
func loadTeam(path string) ([]feedback.TeamMember, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var (
		members []feedback.TeamMember
		wrapped struct {
			Team []feedback.TeamMember `json:"team" yaml:"team"`
		}
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(raw, &members); err != nil {
			if werr := json.Unmarshal(raw, &wrapped); werr != nil {
				return nil, fmt.Errorf("decode team: %w", err)
			}
			members = wrapped.Team
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &members); err != nil {
			if werr := yaml.Unmarshal(raw, &wrapped); werr != nil {
				return nil, fmt.Errorf("decode team: %w", err)
			}
			members = wrapped.Team
		}
	default:
		return nil, fmt.Errorf("unsupported team file %q", filepath.Base(path))
	}

	for i, m := range members {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("team member %d: %w", i, err)
		}
	}
	return members, nil
}
