/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package catalog loads the per-mode lists of candidate locations a round
// can be drawn from.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrCatalogUnavailable is returned when a catalog file is missing or
// malformed, or when a mode has no loaded catalog.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// ErrInvalidMode is returned by ParseMode for unknown mode names.
var ErrInvalidMode = errors.New("invalid mode")

// Mode partitions both the catalog and the score ledger.
type Mode string

const (
	ModeJapan Mode = "japan"
	ModeWorld Mode = "world"
)

// Modes returns every supported mode in display order.
func Modes() []Mode {
	return []Mode{ModeJapan, ModeWorld}
}

func (m Mode) Valid() bool {
	return m == ModeJapan || m == ModeWorld
}

// DefaultFile is the catalog file name of each mode inside a catalog dir.
func (m Mode) DefaultFile() string {
	switch m {
	case ModeJapan:
		return "japancoord.json"
	case ModeWorld:
		return "worldcoord.json"
	}
	return string(m) + ".json"
}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// Candidate is a location a round can use. Answers run from coarsest
// (country) to finest (city) and are stored lowercased.
type Candidate struct {
	Reference string
	Label     string
	Answers   []string
}

// record mirrors one entry of a catalog file.
type record struct {
	Link     string   `json:"link" yaml:"link"`
	Location string   `json:"location" yaml:"location"`
	Answer   []string `json:"answer" yaml:"answer"`
}

// Load reads and validates a whole catalog file. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON.
func Load(path string) ([]Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	var records []record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &records)
	default:
		err = json.Unmarshal(data, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrCatalogUnavailable, path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s has no entries", ErrCatalogUnavailable, path)
	}

	candidates := make([]Candidate, 0, len(records))
	for i, r := range records {
		c, err := r.candidate()
		if err != nil {
			return nil, fmt.Errorf("%w: %s entry %d: %w", ErrCatalogUnavailable, path, i, err)
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

func (r record) candidate() (Candidate, error) {
	link := strings.TrimSpace(r.Link)
	if link == "" {
		return Candidate{}, errors.New("missing link")
	}
	location := strings.TrimSpace(r.Location)
	if location == "" {
		return Candidate{}, errors.New("missing location")
	}

	answers := make([]string, 0, len(r.Answer))
	for _, a := range r.Answer {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		answers = append(answers, a)
	}
	if len(answers) == 0 {
		return Candidate{}, errors.New("missing answers")
	}

	return Candidate{
		Reference: link,
		Label:     location,
		Answers:   answers,
	}, nil
}

// Catalog holds the loaded candidates for every mode. It is never mutated
// after Open returns.
type Catalog struct {
	modes map[Mode][]Candidate
}

// Open loads one file per mode.
func Open(paths map[Mode]string) (*Catalog, error) {
	c := &Catalog{modes: make(map[Mode][]Candidate, len(paths))}

	for mode, path := range paths {
		if !mode.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
		}
		candidates, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("load %s catalog: %w", mode, err)
		}
		c.modes[mode] = candidates
	}

	return c, nil
}

// OpenDir loads the default catalog file of every mode from dir.
func OpenDir(dir string) (*Catalog, error) {
	paths := make(map[Mode]string)
	for _, m := range Modes() {
		paths[m] = filepath.Join(dir, m.DefaultFile())
	}
	return Open(paths)
}

// New builds a catalog from in-memory candidates.
func New(modes map[Mode][]Candidate) *Catalog {
	c := &Catalog{modes: make(map[Mode][]Candidate, len(modes))}
	for m, list := range modes {
		c.modes[m] = append([]Candidate(nil), list...)
	}
	return c
}

// Candidates returns the candidates loaded for mode. Callers must treat the
// slice as read-only.
func (c *Catalog) Candidates(mode Mode) ([]Candidate, error) {
	if c == nil {
		return nil, ErrCatalogUnavailable
	}
	list, ok := c.modes[mode]
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("%w: no catalog for mode %q", ErrCatalogUnavailable, mode)
	}
	return list, nil
}

// Len reports how many candidates a mode has.
func (c *Catalog) Len(mode Mode) int {
	if c == nil {
		return 0
	}
	return len(c.modes[mode])
}
