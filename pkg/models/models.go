// Package models holds the catalog built during a pipeline run: the entries
// discovered on the listing page and the files downloaded for each of them.
package models

import (
	"encoding/json"
	"fmt"
)

// FileGroup is either a single ungrouped file (File set) or a named list of
// files that is organized into its own sub-directory (Files set).
type FileGroup struct {
	Name  string   `json:"name"`
	File  string   `json:"file,omitempty"`
	Files []string `json:"files,omitempty"`
}

// IsScalar reports whether the group is a single ungrouped file
func (g *FileGroup) IsScalar() bool {
	return g.File != ""
}

// Entry is one discovered content container, e.g. a course.
type Entry struct {
	Name           string
	SourceLocation string
	Snapshot       *string
	FileGroups     *OrderedMap[*FileGroup]
}

// NewEntry creates an entry with no file groups
func NewEntry(name, sourceLocation string) *Entry {
	return &Entry{
		Name:           name,
		SourceLocation: sourceLocation,
		FileGroups:     NewOrderedMap[*FileGroup](),
	}
}

// SetSnapshot records the page content the first time it is called.
// Later calls are ignored and report false.
func (e *Entry) SetSnapshot(content string) bool {
	if e.Snapshot != nil {
		return false
	}
	e.Snapshot = &content
	return true
}

// HasSnapshot reports whether a snapshot was captured
func (e *Entry) HasSnapshot() bool {
	return e.Snapshot != nil
}

// AppendFile adds file to the list group named group, creating the group on
// first use. A scalar group of the same name is replaced by a list.
func (e *Entry) AppendFile(group, file string) {
	if g, ok := e.FileGroups.Get(group); ok && !g.IsScalar() {
		g.Files = append(g.Files, file)
		return
	}
	e.FileGroups.Set(group, &FileGroup{Name: group, Files: []string{file}})
}

// SetFile records a single ungrouped file, keyed by its own name.
func (e *Entry) SetFile(file string) {
	e.FileGroups.Set(file, &FileGroup{Name: file, File: file})
}

// FileCount returns the number of files recorded across all groups
func (e *Entry) FileCount() int {
	count := 0
	for _, g := range e.FileGroups.All() {
		if g.IsScalar() {
			count++
		} else {
			count += len(g.Files)
		}
	}
	return count
}

type entryJSON struct {
	Name           string       `json:"name"`
	SourceLocation string       `json:"source_location"`
	Snapshot       *string      `json:"snapshot,omitempty"`
	FileGroups     []*FileGroup `json:"file_groups"`
}

// MarshalJSON encodes file groups as an ordered list
func (e *Entry) MarshalJSON() ([]byte, error) {
	groups := []*FileGroup{}
	if e.FileGroups != nil {
		groups = e.FileGroups.Values()
	}
	return json.Marshal(entryJSON{
		Name:           e.Name,
		SourceLocation: e.SourceLocation,
		Snapshot:       e.Snapshot,
		FileGroups:     groups,
	})
}

// UnmarshalJSON restores file groups in their recorded order
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Name = raw.Name
	e.SourceLocation = raw.SourceLocation
	e.Snapshot = raw.Snapshot
	e.FileGroups = NewOrderedMap[*FileGroup]()
	for _, g := range raw.FileGroups {
		if g == nil || g.Name == "" {
			return fmt.Errorf("entry %q: file group without a name", raw.Name)
		}
		e.FileGroups.Set(g.Name, g)
	}
	return nil
}

// Catalog is the ordered collection of entries owned by one pipeline run.
// Entries are keyed by name; a later entry with the same name replaces the
// earlier one but keeps its position.
type Catalog struct {
	entries *OrderedMap[*Entry]
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{entries: NewOrderedMap[*Entry]()}
}

// Put stores the entry and reports whether an entry of the same name was replaced
func (c *Catalog) Put(e *Entry) bool {
	return c.entries.Set(e.Name, e)
}

// Get returns the entry with the given name
func (c *Catalog) Get(name string) (*Entry, bool) {
	return c.entries.Get(name)
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	return c.entries.Len()
}

// Names returns entry names in catalog order
func (c *Catalog) Names() []string {
	return c.entries.Keys()
}

// Entries returns the entries in catalog order
func (c *Catalog) Entries() []*Entry {
	return c.entries.Values()
}

// FileCount returns the number of files recorded across all entries
func (c *Catalog) FileCount() int {
	count := 0
	for _, e := range c.entries.All() {
		count += e.FileCount()
	}
	return count
}

// MarshalJSON encodes the catalog as an ordered list of entries
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Entries())
}

// UnmarshalJSON restores a catalog encoded by MarshalJSON
func (c *Catalog) UnmarshalJSON(data []byte) error {
	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	c.entries = NewOrderedMap[*Entry]()
	for _, e := range entries {
		c.Put(e)
	}
	return nil
}
