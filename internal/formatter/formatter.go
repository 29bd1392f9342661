// package formatter renders spoken responses from a catalog of text templates.
//
// The catalog ships embedded as templates.yaml. A file with the same layout can override any subset
// of its entries; the merged catalog must still define every required template.
package formatter

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/desertthunder/spotskill/internal/actions"
	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/shared"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultCatalog []byte

// Error template names.
const (
	InvalidInput = "invalid_input"
	NoDevice     = "no_device"
	RemoteError  = "remote_error"
	Error        = "error"
)

// Data is the value every template is executed with. Fields not relevant to a template are zero.
type Data struct {
	Action  string
	Room    string
	Actions []string

	Playlists []models.Playlist
	Devices   []*models.Device

	Playlist models.Playlist
	Device   *models.Device
	Volume   int

	Transferred bool
	Started     bool

	// Subject names what an invalid_input response could not resolve, e.g. "playlist".
	Subject string
}

type catalogFile struct {
	Templates map[string]string `yaml:"templates"`
}

// Catalog holds parsed response templates by name.
type Catalog struct {
	templates map[string]*template.Template
}

// RequiredTemplates lists the names a catalog must define: one per action plus the error kinds.
func RequiredTemplates() []string {
	names := make([]string, 0, len(actions.All())+4)
	for _, a := range actions.All() {
		names = append(names, a.String())
	}
	return append(names, InvalidInput, NoDevice, RemoteError, Error)
}

var funcs = template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"room": func(room string) string { return strings.ReplaceAll(room, "_", " ") },
	"join": strings.Join,
}

// NewCatalog loads the embedded catalog and, when overridePath is set, applies the entries of that file on top.
func NewCatalog(overridePath string) (*Catalog, error) {
	sources, err := parseCatalog(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("embedded templates: %w", err)
	}

	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read templates file: %v", shared.ErrInvalidConfig, err)
		}

		overrides, err := parseCatalog(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", overridePath, err)
		}
		for name, src := range overrides {
			sources[name] = src
		}
	}

	return compile(sources)
}

// ParseCatalog builds a catalog from YAML data alone, without the embedded defaults.
func ParseCatalog(data []byte) (*Catalog, error) {
	sources, err := parseCatalog(data)
	if err != nil {
		return nil, err
	}
	return compile(sources)
}

func parseCatalog(data []byte) (map[string]string, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: failed to parse templates: %v", shared.ErrInvalidConfig, err)
	}
	if file.Templates == nil {
		file.Templates = map[string]string{}
	}
	return file.Templates, nil
}

func compile(sources map[string]string) (*Catalog, error) {
	var missing []string
	for _, name := range RequiredTemplates() {
		if _, ok := sources[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing templates: %s", shared.ErrInvalidConfig, strings.Join(missing, ", "))
	}

	c := &Catalog{templates: make(map[string]*template.Template, len(sources))}
	for name, src := range sources {
		tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("%w: template %q: %v", shared.ErrInvalidConfig, name, err)
		}
		c.templates[name] = tmpl
	}
	return c, nil
}

// Names returns the template names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render executes the named template and collapses its whitespace into single spaces.
func (c *Catalog) Render(name string, data Data) (string, error) {
	tmpl, ok := c.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: template %q", shared.ErrNotFound, name)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %q: %w", name, err)
	}
	return strings.Join(strings.Fields(sb.String()), " "), nil
}
