// Package resolver classifies user-supplied strings into canonical channel
// and stream URLs, using a static VTuber directory plus at most one
// extractor round-trip.
package resolver

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound indicates nothing matched the supplied string.
var ErrNotFound = errors.New("resolver: no channel or stream matches")

// DirEntry is one streamer in the static directory.
type DirEntry struct {
	ChannelID string   `yaml:"-"`
	Channels  []string `yaml:"channels"`
	Name      string   `yaml:"name"`
	EnName    string   `yaml:"en_name"`
	Hidden    bool     `yaml:"hidden"`
}

// Directory is the static channel-ID-keyed streamer directory.
type Directory struct {
	entries []DirEntry
}

// LoadDirectory reads a YAML directory file mapping channel ID to entry.
// A missing path yields an empty directory.
func LoadDirectory(path string) (*Directory, error) {
	if path == "" {
		return &Directory{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory file: %w", err)
	}

	var raw map[string]DirEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing directory file: %w", err)
	}

	d := &Directory{entries: make([]DirEntry, 0, len(raw))}
	for id, entry := range raw {
		entry.ChannelID = id
		d.entries = append(d.entries, entry)
	}
	return d, nil
}

// FromName finds the first directory entry matching a query name. A word of
// the streamer's name starting with the query wins over a substring match.
func (d *Directory) FromName(q string) (DirEntry, error) {
	q = strings.ToLower(q)
	if q == "" {
		return DirEntry{}, ErrNotFound
	}

	for _, e := range d.entries {
		if e.Hidden {
			continue
		}
		for _, word := range strings.Fields(e.Name + " " + e.EnName) {
			if strings.HasPrefix(strings.ToLower(word), q) {
				return e, nil
			}
		}
	}
	for _, e := range d.entries {
		if e.Hidden {
			continue
		}
		if strings.Contains(strings.ToLower(e.Name), q) ||
			(e.EnName != "" && strings.Contains(strings.ToLower(e.EnName), q)) {
			return e, nil
		}
	}
	return DirEntry{}, ErrNotFound
}

// FromChannel finds the entry owning a channel URL.
func (d *Directory) FromChannel(chnURL string) (DirEntry, error) {
	for _, e := range d.entries {
		for _, u := range e.Channels {
			if u == chnURL {
				return e, nil
			}
		}
	}
	return DirEntry{}, ErrNotFound
}
