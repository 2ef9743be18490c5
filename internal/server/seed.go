package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML document that defines which apps the server
// distributes. Example:
//
//	apps:
//	  - name: WorkForce
//	    executable_prefix: WorkForce_
//	    icon: workforce_icon.png
type catalogFile struct {
	Apps []catalogFileApp `yaml:"apps"`
}

type catalogFileApp struct {
	Name             string `yaml:"name"`
	ExecutablePrefix string `yaml:"executable_prefix"`
	Icon             string `yaml:"icon"`
}

// SeedFromFile loads app definitions from a YAML catalog file into
// the database. Existing app rows are updated in place; artifact rows
// are untouched.
func (c *Catalog) SeedFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading catalog file %s: %w", path, err)
	}

	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing catalog file %s: %w", path, err)
	}

	for _, app := range doc.Apps {
		if app.Name == "" || app.ExecutablePrefix == "" {
			return fmt.Errorf("catalog file %s: app entries need name and executable_prefix (got %+v)", path, app)
		}
		if err := c.UpsertApp(App{
			Name:             app.Name,
			ExecutablePrefix: app.ExecutablePrefix,
			Icon:             app.Icon,
		}); err != nil {
			return err
		}
	}
	return nil
}
