// ABOUTME: Exercise catalog of names and categories used to build draft exercises.
// ABOUTME: Ships an embedded list; a user file in the same format replaces it.
package catalog

import (
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/harperreed/fitcore/internal/models"
)

// FileName is the user catalog looked up in the data directory.
const FileName = "exercises.txt"

// DefaultCategory is used for exercises the catalog does not know.
const DefaultCategory = "strength"

//go:embed exercises.txt
var builtin []byte

// Item is one catalog entry.
type Item struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	items  []Item
	byName map[string]Item
}

// Parse reads entries of a name line, a category line and a blank
// separator. A trailing name without a category is filed under "other".
func Parse(r io.Reader) ([]Item, error) {
	var (
		items   []Item
		pending string
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			if pending != "" {
				items = append(items, Item{Name: pending, Category: "other"})
				pending = ""
			}
		case pending == "":
			pending = line
		default:
			items = append(items, Item{Name: pending, Category: strings.ToLower(line)})
			pending = ""
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if pending != "" {
		items = append(items, Item{Name: pending, Category: "other"})
	}
	return items, nil
}

// New builds a catalog from items. Later duplicates of a name are dropped.
func New(items []Item) *Catalog {
	c := &Catalog{byName: make(map[string]Item, len(items))}
	for _, it := range items {
		key := strings.ToLower(it.Name)
		if _, dup := c.byName[key]; dup {
			continue
		}
		c.byName[key] = it
		c.items = append(c.items, it)
	}
	return c
}

// Default returns the embedded catalog.
func Default() *Catalog {
	items, err := Parse(bytes.NewReader(builtin))
	if err != nil {
		panic(err)
	}
	return New(items)
}

// Load reads the catalog at path, falling back to the embedded one when
// the file does not exist.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	items, err := Parse(f)
	if err != nil {
		return nil, err
	}
	return New(items), nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Lookup finds an entry by case-insensitive name.
func (c *Catalog) Lookup(name string) (Item, bool) {
	it, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return it, ok
}

// CategoryOf returns the catalog category for name, or DefaultCategory.
func (c *Catalog) CategoryOf(name string) string {
	if it, ok := c.Lookup(name); ok {
		return it.Category
	}
	return DefaultCategory
}

// Search returns entries whose name or category contains query, ordered by
// category then name. An empty query returns everything.
func (c *Catalog) Search(query string) []Item {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Item
	for _, it := range c.items {
		if q == "" || strings.Contains(strings.ToLower(it.Name), q) || strings.Contains(strings.ToLower(it.Category), q) {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Exercise builds a draft exercise for name with sets identical sets. The
// catalog spelling and category are used when name is known.
func (c *Catalog) Exercise(name string, sets, reps int, weight *float64) models.Exercise {
	category := DefaultCategory
	if it, ok := c.Lookup(name); ok {
		name, category = it.Name, it.Category
	}
	ex := models.NewExercise(name, category)
	for i := 0; i < sets; i++ {
		var w *float64
		if weight != nil {
			w = models.Float(*weight)
		}
		s := models.NewSet(w, reps)
		s.RestTime = ex.RestTime
		ex.Sets = append(ex.Sets, s)
	}
	return ex
}
