package config

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/aptpost/aptpost/core/ncword"
)

//go:embed schema.json
var schemaJSON []byte

//go:embed profiles/*.yaml
var profileFS embed.FS

const schemaURL = "aptpost://controller.schema.json"

// Format is the syntax of a profile document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the document format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Problem is one schema violation.
type Problem struct {
	Path    string // JSON pointer into the document, "" for the root
	Message string
}

// Error reports an unreadable or invalid profile.
type Error struct {
	Source   string
	Problems []Problem
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "controller profile %s", e.Source)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	for _, p := range e.Problems {
		path := p.Path
		if path == "" {
			path = "/"
		}
		fmt.Fprintf(&b, "\n  %s: %s", path, p.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrInvalid is wrapped by every Error caused by schema violations.
var ErrInvalid = errors.New("does not match schema")

// ErrUnknownProfile is returned for a profile name with no built-in definition.
var ErrUnknownProfile = errors.New("unknown controller profile")

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true
		if compiler.Formats == nil {
			compiler.Formats = make(map[string]func(interface{}) bool)
		}
		for name, fn := range formatValidators() {
			compiler.Formats[name] = fn
		}
		compiler.LoadURL = func(url string) (io.ReadCloser, error) {
			return nil, fmt.Errorf("remote $ref not allowed: %s", url)
		}
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

func formatValidators() map[string]func(interface{}) bool {
	return map[string]func(interface{}) bool{
		"semver": func(v interface{}) bool {
			s, ok := v.(string)
			if !ok {
				return true // type is checked separately
			}
			if !strings.HasPrefix(s, "v") {
				s = "v" + s
			}
			return semver.IsValid(s)
		},
		"formatspec": func(v interface{}) bool {
			s, ok := v.(string)
			if !ok {
				return true
			}
			_, valid := ncword.TryParseFormatSpec(s)
			return valid
		},
	}
}

// Parse validates a profile document and decodes it on top of the profile
// it extends, or the generic base profile.
func Parse(data []byte, format Format, source string) (*Controller, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, &Error{Source: source, Err: err}
	}

	s, err := compiledSchema()
	if err != nil {
		return nil, &Error{Source: source, Err: fmt.Errorf("compile schema: %w", err)}
	}
	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, &Error{Source: source, Problems: problems(ve), Err: ErrInvalid}
		}
		return nil, &Error{Source: source, Err: err}
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, &Error{Source: source, Err: err}
	}

	c := base()
	if parent := extendsOf(doc); parent != "" {
		if c, err = Builtin(parent); err != nil {
			return nil, &Error{Source: source, Err: err}
		}
	}
	if err := json.Unmarshal(normalized, c); err != nil {
		return nil, &Error{Source: source, Err: err}
	}
	c.Extends = ""
	return c, nil
}

// Load reads and parses the profile at path. The format follows the extension.
func Load(path string) (*Controller, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Source: path, Err: err}
	}
	return Parse(data, FormatFromPath(path), path)
}

// decodeDocument turns JSON or YAML into the generic form the schema
// validator expects: maps, slices, strings, float64 and bools.
func decodeDocument(data []byte, format Format) (any, error) {
	if format == FormatYAML {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
		// round trip through JSON to normalize YAML scalar types
		js, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		data = js
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return doc, nil
}

func extendsOf(doc any) string {
	m, ok := doc.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m["extends"].(string)
	return s
}

// problems flattens a validation error tree into its leaf causes.
func problems(ve *jsonschema.ValidationError) []Problem {
	if len(ve.Causes) == 0 {
		return []Problem{{Path: ve.InstanceLocation, Message: ve.Message}}
	}
	var out []Problem
	for _, cause := range ve.Causes {
		out = append(out, problems(cause)...)
	}
	return out
}

var (
	builtinMu sync.Mutex
	builtins  = map[string]*Controller{}
)

// Builtin returns a fresh copy of the embedded profile called name.
func Builtin(name string) (*Controller, error) {
	builtinMu.Lock()
	c, ok := builtins[name]
	builtinMu.Unlock()
	if !ok {
		data, err := profileFS.ReadFile("profiles/" + name + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownProfile, name, strings.Join(Names(), ", "))
		}
		if c, err = Parse(data, FormatYAML, name); err != nil {
			return nil, err
		}
		builtinMu.Lock()
		builtins[name] = c
		builtinMu.Unlock()
	}
	return c.Clone(), nil
}

// Default returns the fanuc profile.
func Default() *Controller {
	c, err := Builtin("fanuc")
	if err != nil {
		panic(fmt.Sprintf("embedded fanuc profile: %v", err))
	}
	return c
}

// Names lists the embedded profiles.
func Names() []string {
	entries, _ := profileFS.ReadDir("profiles")
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	slices.Sort(names)
	return names
}

// Resolve returns the profile at path when path is not empty, otherwise the
// built-in profile called name.
func Resolve(name, path string) (*Controller, error) {
	if path != "" {
		return Load(path)
	}
	return Builtin(name)
}

// Clone returns a deep copy of c.
func (c *Controller) Clone() *Controller {
	out := *c
	out.Registers = maps.Clone(c.Registers)
	out.Codes = maps.Clone(c.Codes)
	out.Templates.Header = slices.Clone(c.Templates.Header)
	out.Templates.Footer = slices.Clone(c.Templates.Footer)
	return &out
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
