package config

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Section is one [name] block. Every getter records the option as used.
type Section struct {
	name    string
	options map[string]string

	mu       sync.Mutex
	accessed map[string]struct{}
}

func newSection(name string, options map[string]string) *Section {
	opts := make(map[string]string, len(options))
	for k, v := range options {
		opts[strings.ToLower(k)] = v
	}
	return &Section{
		name:     name,
		options:  opts,
		accessed: make(map[string]struct{}),
	}
}

// Name returns the section name.
func (s *Section) Name() string {
	return s.name
}

// HasOption reports whether option is set.
func (s *Section) HasOption(option string) bool {
	_, ok := s.options[strings.ToLower(option)]
	return ok
}

// UnusedOptions returns the options no getter has read, sorted.
func (s *Section) UnusedOptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for opt := range s.options {
		if _, ok := s.accessed[opt]; !ok {
			out = append(out, opt)
		}
	}
	sort.Strings(out)
	return out
}

// lookup returns the parsed option, the fallback when the option is
// absent, or a missing option error.
func lookup[V any](s *Section, option string, parse func(string) (V, error), fallback []V) (V, error) {
	key := strings.ToLower(option)
	s.mu.Lock()
	s.accessed[key] = struct{}{}
	s.mu.Unlock()

	if raw, ok := s.options[key]; ok {
		return parse(strings.TrimSpace(raw))
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	var zero V
	return zero, ErrMissingOption(s.name, option)
}

// Get returns a string option.
func (s *Section) Get(option string, fallback ...string) (string, error) {
	return lookup(s, option, func(v string) (string, error) { return v, nil }, fallback)
}

// GetInt returns an integer option.
func (s *Section) GetInt(option string, fallback ...int) (int, error) {
	return lookup(s, option, func(v string) (int, error) {
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, ErrInvalidValue(s.name, option, v, "integer")
		}
		return i, nil
	}, fallback)
}

// GetIntWithBounds returns an integer option in [minVal, maxVal].
func (s *Section) GetIntWithBounds(option string, minVal, maxVal int, fallback ...int) (int, error) {
	v, err := s.GetInt(option, fallback...)
	if err != nil {
		return 0, err
	}
	if v < minVal {
		return 0, ErrOutOfRange(s.name, option, float64(v), "must have minimum of "+strconv.Itoa(minVal))
	}
	if v > maxVal {
		return 0, ErrOutOfRange(s.name, option, float64(v), "must have maximum of "+strconv.Itoa(maxVal))
	}
	return v, nil
}

// GetFloat returns a float option.
func (s *Section) GetFloat(option string, fallback ...float64) (float64, error) {
	return lookup(s, option, func(v string) (float64, error) {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, ErrInvalidValue(s.name, option, v, "float")
		}
		return f, nil
	}, fallback)
}

// FloatBounds constrains GetFloatWithBounds. Nil fields are unchecked.
type FloatBounds struct {
	MinVal *float64 // >=
	MaxVal *float64 // <=
	Above  *float64 // >
	Below  *float64 // <
}

// Float returns a pointer for use in FloatBounds.
func Float(v float64) *float64 { return &v }

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// GetFloatWithBounds returns a float option within bounds.
func (s *Section) GetFloatWithBounds(option string, b FloatBounds, fallback ...float64) (float64, error) {
	v, err := s.GetFloat(option, fallback...)
	if err != nil {
		return 0, err
	}
	switch {
	case b.MinVal != nil && v < *b.MinVal:
		return 0, ErrOutOfRange(s.name, option, v, "must have minimum of "+fmtFloat(*b.MinVal))
	case b.MaxVal != nil && v > *b.MaxVal:
		return 0, ErrOutOfRange(s.name, option, v, "must have maximum of "+fmtFloat(*b.MaxVal))
	case b.Above != nil && v <= *b.Above:
		return 0, ErrOutOfRange(s.name, option, v, "must be above "+fmtFloat(*b.Above))
	case b.Below != nil && v >= *b.Below:
		return 0, ErrOutOfRange(s.name, option, v, "must be below "+fmtFloat(*b.Below))
	}
	return v, nil
}

// GetBool accepts 1/0, true/false, yes/no and on/off.
func (s *Section) GetBool(option string, fallback ...bool) (bool, error) {
	return lookup(s, option, func(v string) (bool, error) {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true, nil
		case "0", "false", "no", "off":
			return false, nil
		}
		return false, ErrInvalidValue(s.name, option, v, "boolean")
	}, fallback)
}

// GetChoice returns one of choices, matched case-insensitively.
func (s *Section) GetChoice(option string, choices []string, fallback ...string) (string, error) {
	v, err := s.Get(option, fallback...)
	if err != nil {
		return "", err
	}
	for _, c := range choices {
		if strings.EqualFold(v, c) {
			return c, nil
		}
	}
	return "", ErrInvalidChoice(s.name, option, v, choices)
}

// GetIntList returns a comma separated integer list.
func (s *Section) GetIntList(option string, fallback ...[]int) ([]int, error) {
	return lookup(s, option, func(v string) ([]int, error) {
		var out []int
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			i, err := strconv.Atoi(p)
			if err != nil {
				return nil, ErrInvalidValue(s.name, option, p, "integer")
			}
			out = append(out, i)
		}
		return out, nil
	}, fallback)
}
