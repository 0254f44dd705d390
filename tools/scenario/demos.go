package scenario

import (
	"embed"
	"fmt"
	"path"
	"slices"
	"strings"
)

//go:embed demos/*.yaml
var demoFS embed.FS

// DemoNames lists the embedded demos in the order they are meant to be
// read.
var DemoNames = []string{
	"strong-counts",
	"room-cycle",
	"room-cycle-manual",
	"room-weak",
	"credit-card",
	"company-ceo",
	"closure-cycle",
	"closure-unowned",
	"closure-dangling",
	"closure-weak",
	"closure-list",
}

// Demo loads an embedded demo by name.
func Demo(name string) (*Scenario, error) {
	if !slices.Contains(DemoNames, name) {
		return nil, fmt.Errorf("%w: unknown demo %q (have %s)",
			ErrInvalidScenario, name, strings.Join(DemoNames, ", "))
	}
	data, err := demoFS.ReadFile(path.Join("demos", name+".yaml"))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Demos loads every embedded demo.
func Demos() ([]*Scenario, error) {
	all := make([]*Scenario, 0, len(DemoNames))
	for _, name := range DemoNames {
		s, err := Demo(name)
		if err != nil {
			return nil, err
		}
		all = append(all, s)
	}
	return all, nil
}
