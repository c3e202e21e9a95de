// Package loader reads historical process records from YAML files.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/hochfrequenz/process-eta/internal/domain"
)

// maxParallelReads bounds concurrent file reads in LoadDir
const maxParallelReads = 4

// File is the YAML document layout
type File struct {
	Processes []Record `yaml:"processes"`
}

// Record is one process as written in YAML. Either End or Duration may be
// given; Duration wins when both are set.
type Record struct {
	ID        string            `yaml:"id"`
	Owner     string            `yaml:"owner"`
	Type      string            `yaml:"type"`
	Priority  string            `yaml:"priority"`
	Status    string            `yaml:"status"`
	Start     string            `yaml:"start"`
	End       string            `yaml:"end"`
	Duration  string            `yaml:"duration"`
	Steps     []string          `yaml:"steps"`
	Retries   int               `yaml:"retries"`
	Automated bool              `yaml:"automated"`
	Metadata  map[string]string `yaml:"metadata"`
}

// recordNamespace seeds the IDs derived for records that have none
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("process-eta/records"))

// Parse decodes YAML content into process records. Records without an id get
// one derived from the document content and their position in it.
func Parse(data []byte) ([]*domain.Process, error) {
	sum := sha256.Sum256(data)
	return parse(data, hex.EncodeToString(sum[:]))
}

// ParseFile reads and parses a single YAML file. Records without an id get
// one derived from the absolute file path and their position in the file, so
// importing the same file again updates rather than duplicates them.
func ParseFile(path string) ([]*domain.Process, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	source, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	processes, err := parse(data, source)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return processes, nil
}

func parse(data []byte, source string) ([]*domain.Process, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	processes := make([]*domain.Process, 0, len(f.Processes))
	for i, r := range f.Processes {
		p, err := r.toProcess()
		if err != nil {
			return nil, fmt.Errorf("process %d (%s): %w", i, r.ID, err)
		}
		if p.ID == "" {
			p.ID = RecordID(source, i)
		}
		processes = append(processes, p)
	}
	return processes, nil
}

// RecordID is the ID given to the index-th record of source when it has none
func RecordID(source string, index int) string {
	return uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s#%d", source, index))).String()
}

// LoadDir parses every *.yaml / *.yml file in dir concurrently and returns
// the records in file name order
func LoadDir(ctx context.Context, dir string) ([]*domain.Process, error) {
	files, err := RecordFiles(dir)
	if err != nil {
		return nil, err
	}
	return LoadFiles(ctx, files)
}

// LoadFiles parses the given files concurrently, preserving argument order
func LoadFiles(ctx context.Context, files []string) ([]*domain.Process, error) {
	results := make([][]*domain.Process, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)

	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			processes, err := ParseFile(path)
			if err != nil {
				return err
			}
			results[i] = processes
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*domain.Process
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// RecordFiles lists the YAML files directly inside dir, sorted by name
func RecordFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsRecordFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// IsRecordFile reports whether name looks like a YAML record file
func IsRecordFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func (r Record) toProcess() (*domain.Process, error) {
	p := &domain.Process{
		ID:             r.ID,
		OwnerID:        r.Owner,
		Type:           r.Type,
		Priority:       domain.ParsePriority(r.Priority),
		Status:         domain.ParseStatus(r.Status),
		StepsCompleted: r.Steps,
		Retries:        r.Retries,
		Automated:      r.Automated,
		Metadata:       r.Metadata,
	}
	if p.Status == "" {
		p.Status = domain.StatusInProgress
	}
	if p.Metadata == nil {
		p.Metadata = map[string]string{}
	}

	if r.Start == "" {
		return nil, fmt.Errorf("start is required")
	}
	start, err := time.Parse(time.RFC3339, r.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	p.StartTime = start

	switch {
	case r.Duration != "":
		d, err := time.ParseDuration(r.Duration)
		if err != nil {
			return nil, fmt.Errorf("duration: %w", err)
		}
		p.EndTime = start.Add(d)
	case r.End != "":
		end, err := time.Parse(time.RFC3339, r.End)
		if err != nil {
			return nil, fmt.Errorf("end: %w", err)
		}
		p.EndTime = end
	default:
		p.EndTime = start
	}

	return p, nil
}
