package advisor

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed curriculum.yaml
var defaultCurriculum []byte

// Catalog is the immutable directory of courses. It is safe to share across
// goroutines; every accessor returns copies.
type Catalog struct {
	program     string
	courses     []Course
	byID        map[string]int
	byYear      map[int][]int
	years       []int
	creditHours int
}

// CatalogOption configures catalog construction.
type CatalogOption func(*catalogOptions)

type catalogOptions struct {
	strict  bool
	program string
}

// WithStrictValidation makes the catalog reject prerequisites that point to
// unknown courses and prerequisite cycles.
func WithStrictValidation() CatalogOption {
	return func(o *catalogOptions) { o.strict = true }
}

// WithProgram names the program the curriculum belongs to.
func WithProgram(program string) CatalogOption {
	return func(o *catalogOptions) { o.program = program }
}

// NewCatalog builds a catalog from courses in declaration order.
func NewCatalog(courses []Course, opts ...CatalogOption) (*Catalog, error) {
	var o catalogOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &Catalog{
		program: o.program,
		courses: make([]Course, 0, len(courses)),
		byID:    make(map[string]int, len(courses)),
		byYear:  make(map[int][]int),
	}

	for _, course := range courses {
		if course.ID == "" {
			return nil, &CurriculumError{Message: "course without id"}
		}
		if _, dup := c.byID[course.ID]; dup {
			return nil, &CurriculumError{CourseID: course.ID, Message: "duplicate id"}
		}
		if course.Year <= 0 {
			return nil, &CurriculumError{CourseID: course.ID, Message: "year must be positive"}
		}
		course.Prerequisites = slices.Clone(course.Prerequisites)

		idx := len(c.courses)
		c.courses = append(c.courses, course)
		c.byID[course.ID] = idx
		if _, seen := c.byYear[course.Year]; !seen {
			c.years = append(c.years, course.Year)
		}
		c.byYear[course.Year] = append(c.byYear[course.Year], idx)
		c.creditHours += course.CreditHours
	}
	sort.Ints(c.years)

	if o.strict {
		if err := c.validate(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type curriculumDocument struct {
	Program string   `yaml:"program"`
	Courses []Course `yaml:"courses"`
}

// LoadCatalog parses a curriculum document. The document is YAML (JSON is
// accepted too) holding either a list of courses or a mapping with a
// "courses" list.
func LoadCatalog(data []byte, opts ...CatalogOption) (*Catalog, error) {
	var courses []Course
	if err := yaml.Unmarshal(data, &courses); err == nil {
		return NewCatalog(courses, opts...)
	}

	var doc curriculumDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &CurriculumError{Message: fmt.Sprintf("parse document: %v", err)}
	}
	if doc.Program != "" {
		opts = append([]CatalogOption{WithProgram(doc.Program)}, opts...)
	}
	return NewCatalog(doc.Courses, opts...)
}

// LoadCatalogFile reads and parses a curriculum document from disk.
func LoadCatalogFile(path string, opts ...CatalogOption) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curriculum: %w", err)
	}
	return LoadCatalog(data, opts...)
}

// DefaultCatalog returns the curriculum bundled with the package.
func DefaultCatalog(opts ...CatalogOption) (*Catalog, error) {
	return LoadCatalog(defaultCurriculum, opts...)
}

// Program returns the program name, if the document declared one.
func (c *Catalog) Program() string {
	return c.program
}

// Get returns the course with the given id. Unknown ids yield a zero Course
// and false.
func (c *Catalog) Get(id string) (Course, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Course{}, false
	}
	return cloneCourse(c.courses[idx]), true
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Name returns the course name, or "" for unknown ids.
func (c *Catalog) Name(id string) string {
	idx, ok := c.byID[id]
	if !ok {
		return ""
	}
	return c.courses[idx].Name
}

// ByYear returns the courses of a year in catalog order.
func (c *Catalog) ByYear(year int) []Course {
	idxs := c.byYear[year]
	out := make([]Course, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, cloneCourse(c.courses[idx]))
	}
	return out
}

// CourseIDs returns the ids of a year's courses in catalog order.
func (c *Catalog) CourseIDs(year int) []string {
	idxs := c.byYear[year]
	out := make([]string, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, c.courses[idx].ID)
	}
	return out
}

// All returns every course in catalog order.
func (c *Catalog) All() []Course {
	out := make([]Course, 0, len(c.courses))
	for _, course := range c.courses {
		out = append(out, cloneCourse(course))
	}
	return out
}

// Len returns the number of courses.
func (c *Catalog) Len() int {
	return len(c.courses)
}

// countKnown counts the distinct ids that are in the catalog.
func (c *Catalog) countKnown(ids []string) int {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if c.Has(id) {
			seen[id] = true
		}
	}
	return len(seen)
}

// Years returns the distinct years in ascending order.
func (c *Catalog) Years() []int {
	return slices.Clone(c.years)
}

// TotalCreditHours sums the credit hours of every course.
func (c *Catalog) TotalCreditHours() int {
	return c.creditHours
}

func cloneCourse(c Course) Course {
	c.Prerequisites = slices.Clone(c.Prerequisites)
	return c
}

// validate checks prerequisite references and acyclicity.
func (c *Catalog) validate() error {
	for _, course := range c.courses {
		for _, pre := range course.Prerequisites {
			if _, ok := c.byID[pre]; !ok {
				return &CurriculumError{CourseID: course.ID, Message: fmt.Sprintf("unknown prerequisite %q", pre)}
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(c.courses))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			start := slices.Index(stack, id)
			path := append(slices.Clone(stack[start:]), id)
			return &CycleError{Path: path}
		}
		state[id] = visiting
		stack = append(stack, id)
		for _, pre := range c.courses[c.byID[id]].Prerequisites {
			if err := visit(pre); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, course := range c.courses {
		if err := visit(course.ID); err != nil {
			return err
		}
	}
	return nil
}
