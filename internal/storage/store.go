package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/bubblechamber/internal/config"
	"github.com/san-kum/bubblechamber/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	metadataFile = "metadata.json"
	activityFile = "activity.csv"
	trailsFile   = "trails.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Config    config.Config      `json:"config"`
	Steps     int                `json:"steps"`
	Truncated bool               `json:"truncated"`
	Elapsed   time.Duration      `json:"elapsed_ns"`
	Artifact  string             `json:"artifact,omitempty"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes a run directory holding the metadata, the per-step active
// counts and every particle trail. It returns the run id.
func (s *Store) Save(meta RunMetadata, activity []int, v sim.View) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runID, runDir, err := s.createRunDir(meta.Timestamp, meta.Seed)
	if err != nil {
		return "", err
	}
	meta.ID = runID

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeActivity(filepath.Join(runDir, activityFile), activity); err != nil {
		return "", err
	}
	if v != nil {
		if err := writeTrails(filepath.Join(runDir, trailsFile), v); err != nil {
			return "", err
		}
	}
	return runID, nil
}

func (s *Store) createRunDir(ts time.Time, seed int64) (string, string, error) {
	if err := s.Init(); err != nil {
		return "", "", err
	}
	base := fmt.Sprintf("run_%s_%d", ts.Format("20060102-150405"), seed)
	for i := 0; ; i++ {
		id := base
		if i > 0 {
			id = fmt.Sprintf("%s_%d", base, i)
		}
		dir := filepath.Join(s.baseDir, id)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return id, dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", err
		}
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}

func writeActivity(path string, activity []int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"step", "active"}); err != nil {
		return err
	}
	for i, n := range activity {
		if err := w.Write([]string{strconv.Itoa(i + 1), strconv.Itoa(n)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeTrails(path string, v sim.View) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"particle", "index", "x", "y"}); err != nil {
		return err
	}
	for i, p := range v.Particles() {
		id := strconv.Itoa(i)
		for k, pt := range p.Path() {
			row := []string{
				id,
				strconv.Itoa(k),
				strconv.FormatFloat(pt.X, 'f', 4, 64),
				strconv.FormatFloat(pt.Y, 'f', 4, 64),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// List returns all readable runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadActivity returns the active particle count after each step.
func (s *Store) LoadActivity(runID string) ([]int, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, activityFile))
	if err != nil {
		return nil, err
	}

	activity := make([]int, 0, len(records))
	for _, record := range records {
		if len(record) < 2 {
			continue
		}
		n, err := strconv.Atoi(record[1])
		if err != nil {
			continue
		}
		activity = append(activity, n)
	}
	return activity, nil
}

// LoadTrails returns the stored path (spawn point, then trail) of every particle, indexed by particle.
func (s *Store) LoadTrails(runID string) ([][]r2.Vec, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, trailsFile))
	if err != nil {
		return nil, err
	}

	trails := make([][]r2.Vec, 0)
	for _, record := range records {
		if len(record) < 4 {
			continue
		}
		id, err := strconv.Atoi(record[0])
		if err != nil || id < 0 {
			continue
		}
		x, errX := strconv.ParseFloat(record[2], 64)
		y, errY := strconv.ParseFloat(record[3], 64)
		if errX != nil || errY != nil {
			continue
		}
		for len(trails) <= id {
			trails = append(trails, nil)
		}
		trails[id] = append(trails[id], r2.Vec{X: x, Y: y})
	}
	return trails, nil
}

// readCSV returns the records after the header row.
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return [][]string{}, nil
	}
	return records[1:], nil
}
