package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Config is a set of sections with access tracking.
type Config struct {
	mu       sync.Mutex
	sections map[string]*Section
	order    []string
	accessed map[string]struct{}
}

// New creates an empty Config.
func New() *Config {
	return &Config{
		sections: make(map[string]*Section),
		accessed: make(map[string]struct{}),
	}
}

// Load reads a .yaml/.yml file or an INI style file. INI files may pull
// in others with [include glob].
func Load(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return LoadYAML(data)
	}
	c := New()
	if err := c.parseFile(path, make(map[string]bool)); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadString parses INI style text. Includes are not supported.
func LoadString(data string) (*Config, error) {
	c := New()
	if err := c.parse(strings.NewReader(data), "<string>", nil); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) parseFile(path string, visited map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: invalid path %s: %w", path, err)
	}
	if visited[abs] {
		return fmt.Errorf("config: recursive include: %s", path)
	}
	visited[abs] = true
	defer delete(visited, abs)

	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dir := filepath.Dir(abs)
	return c.parse(f, path, func(spec string) error {
		glob := filepath.Join(dir, spec)
		matches, err := filepath.Glob(glob)
		if err != nil {
			return fmt.Errorf("config: invalid include pattern %q: %w", spec, err)
		}
		if len(matches) == 0 && !strings.ContainsAny(glob, "*?[") {
			return fmt.Errorf("config: include file does not exist: %s", glob)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if err := c.parseFile(m, visited); err != nil {
				return err
			}
		}
		return nil
	})
}

// parse reads "[section]" headers and "key: value" or "key = value"
// lines. '#' and ';' start comments. include is nil when includes are
// not allowed.
func (c *Config) parse(r io.Reader, name string, include func(string) error) error {
	var (
		section string
		options map[string]string
		lineNum int
	)
	flush := func() {
		if section != "" {
			c.addSection(section, options)
		}
		section, options = "", nil
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNum++
		line := sc.Text()
		if i := strings.IndexAny(line, "#;"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flush()
			header := strings.TrimSpace(line[1 : len(line)-1])
			if header == "" {
				return fmt.Errorf("config: empty section header at %s:%d", name, lineNum)
			}
			if spec, ok := strings.CutPrefix(header, "include "); ok {
				if include == nil {
					return fmt.Errorf("config: include not allowed at %s:%d", name, lineNum)
				}
				if err := include(strings.TrimSpace(spec)); err != nil {
					return err
				}
				continue
			}
			section = header
			options = make(map[string]string)
			continue
		}

		if section == "" {
			return fmt.Errorf("config: option outside section at %s:%d", name, lineNum)
		}
		i := strings.IndexAny(line, ":=")
		if i <= 0 {
			return fmt.Errorf("config: malformed line at %s:%d: %q", name, lineNum, line)
		}
		options[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("config: reading %s: %w", name, err)
	}
	flush()
	return nil
}

// addSection adds a section, merging options into an existing one.
func (c *Config) addSection(name string, options map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.sections[name]; ok {
		for k, v := range options {
			existing.options[strings.ToLower(k)] = v
		}
		return
	}
	c.sections[name] = newSection(name, options)
	c.order = append(c.order, name)
}

// Section returns a required section.
func (c *Config) Section(name string) (*Section, error) {
	if s := c.SectionOptional(name); s != nil {
		return s, nil
	}
	return nil, ErrMissingSection(name)
}

// SectionOptional returns the section or nil when absent.
func (c *Config) SectionOptional(name string) *Section {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sections[name]
	if ok {
		c.accessed[name] = struct{}{}
	}
	return s
}

// HasSection reports whether the section exists.
func (c *Config) HasSection(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sections[name]
	return ok
}

// SectionNames returns the section names in file order.
func (c *Config) SectionNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// UnusedSections returns sections never requested, sorted.
func (c *Config) UnusedSections() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for name := range c.sections {
		if _, ok := c.accessed[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// CheckUnused fails on sections or options no getter has read, which
// usually are typos.
func (c *Config) CheckUnused() error {
	var problems []string
	if unused := c.UnusedSections(); len(unused) > 0 {
		problems = append(problems, fmt.Sprintf("unused sections %v", unused))
	}
	c.mu.Lock()
	for _, name := range c.order {
		if _, ok := c.accessed[name]; !ok {
			continue
		}
		if unused := c.sections[name].UnusedOptions(); len(unused) > 0 {
			problems = append(problems, fmt.Sprintf("[%s]: unused options %v", name, unused))
		}
	}
	c.mu.Unlock()
	if len(problems) > 0 {
		return ErrUnused(strings.Join(problems, "; "))
	}
	return nil
}
