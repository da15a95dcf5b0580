// Package render produces per-device command sequences from Jinja2-style
// templates (pongo2).
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pongo2 "github.com/flosch/pongo2/v6"

	"github.com/dynconf/dynconf/pkg/util"
)

// Renderer renders templates resolved against an explicit root directory.
// The root is passed in rather than taken from the process working
// directory so callers control template resolution.
type Renderer struct {
	root string
	set  *pongo2.TemplateSet

	// Strict causes references to variables absent from the bindings to
	// fail with a RenderError instead of rendering empty. On by default.
	Strict bool
}

// New creates a Renderer rooted at dir ("." for the working directory).
// The root must exist.
func New(dir string) (*Renderer, error) {
	fsLoader, err := pongo2.NewLocalFileSystemLoader(dir)
	if err != nil {
		return nil, fmt.Errorf("template root %s: %w", dir, err)
	}
	return &Renderer{
		root:   dir,
		set:    pongo2.NewSet("dynconf", fsLoader),
		Strict: true,
	}, nil
}

// Commands renders the named template with the given variable bindings and
// returns the non-empty lines of the result, in order. Leading whitespace
// is preserved: indentation is significant in device configuration.
func (r *Renderer) Commands(name string, vars map[string]any) ([]string, error) {
	text, err := r.Render(name, vars)
	if err != nil {
		return nil, err
	}

	var commands []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		commands = append(commands, strings.TrimRight(line, " \t\r"))
	}
	return commands, nil
}

// Render renders the named template to text.
func (r *Renderer) Render(name string, vars map[string]any) (string, error) {
	path := filepath.Join(r.root, name)
	source, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &util.TemplateNotFoundError{Name: name, Root: r.root}
		}
		return "", &util.RenderError{Template: name, Err: err}
	}

	if r.Strict {
		if err := checkUndefined(name, string(source), vars); err != nil {
			return "", err
		}
	}

	tpl, err := r.set.FromBytes(source)
	if err != nil {
		return "", &util.RenderError{Template: name, Err: err}
	}
	out, err := tpl.Execute(pongo2.Context(vars))
	if err != nil {
		return "", &util.RenderError{Template: name, Err: err}
	}
	return out, nil
}
