// Package scenario runs small reference counting programs written in YAML.
//
// A scenario declares variables holding references to nodes, links nodes
// to each other through named fields, and checks which nodes were
// deinitialized along the way:
//
//	name: room-weak
//	steps:
//	  - new: {var: yagom, type: Person, name: yagom}
//	  - new: {var: room, type: Room, name: "505"}
//	  - link: {from: room, field: host, to: yagom, kind: weak}
//	  - link: {from: yagom, field: room, to: room}
//	  - drop: yagom
//	  - expect: {freed: [yagom]}
package scenario

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arcmem/arcmem/std/arc"
	"github.com/arcmem/arcmem/std/utils/toolutils"
)

// ErrInvalidScenario is returned for scenarios that cannot be run.
var ErrInvalidScenario = errors.New("scenario: invalid scenario")

// ErrExpectation is returned when an expect step does not hold.
var ErrExpectation = errors.New("scenario: expectation failed")

// Scenario is one program.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Run against a synchronized registry
	Synchronized bool `json:"synchronized"`
	// Number of objects expected to leak after every variable is dropped
	Leaks int    `json:"leaks"`
	Steps []Step `json:"steps"`
}

// Step holds exactly one action.
type Step struct {
	New     *NewStep     `json:"new,omitempty"`
	Declare *DeclareStep `json:"declare,omitempty"`
	Assign  *AssignStep  `json:"assign,omitempty"`
	// Drop sets a variable to nil
	Drop    string       `json:"drop,omitempty"`
	Link    *LinkStep    `json:"link,omitempty"`
	Capture *CaptureStep `json:"capture,omitempty"`
	Read    *ReadStep    `json:"read,omitempty"`
	// Call runs the introduce closure of a variable's node
	Call   string  `json:"call,omitempty"`
	Expect *Expect `json:"expect,omitempty"`
	// Scope runs nested steps; variables first declared inside are
	// dropped on exit, most recent first
	Scope []Step `json:"scope,omitempty"`

	// ExpectFatal names the fatal error the step must raise:
	// count-underflow, weak-underflow, retain-dead, use-after-free,
	// duplicate-id or empty-handle.
	ExpectFatal string `json:"expect_fatal,omitempty"`
}

// NewStep allocates a node and binds it to a strong variable.
type NewStep struct {
	Var   string `json:"var"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	Hobby string `json:"hobby"`
}

// DeclareStep declares an empty variable of the given kind.
type DeclareStep struct {
	Var  string `json:"var"`
	Kind string `json:"kind"`
}

// AssignStep binds Var to whatever From references. An empty From is nil.
type AssignStep struct {
	Var  string `json:"var"`
	From string `json:"from"`
}

// LinkStep stores a reference to To in a field of From's node.
// Kind is strong (default), weak, unowned or none, which clears the field.
type LinkStep struct {
	From  string `json:"from"`
	Field string `json:"field"`
	To    string `json:"to"`
	Kind  string `json:"kind"`
}

// CaptureStep sets the introduce closure of Var's node. With From, the
// closure of From's node is shared instead, captured reference included.
// With List, the closure captures every listed variable and prints the
// names of their nodes, or nil for weak entries that are gone.
type CaptureStep struct {
	Var      string         `json:"var"`
	Kind     string         `json:"kind"`
	From     string         `json:"from"`
	Fallback string         `json:"fallback"`
	List     []CaptureEntry `json:"list"`
}

// CaptureEntry is one element of a capture list.
type CaptureEntry struct {
	Var  string `json:"var"`
	Kind string `json:"kind"`
}

// ReadStep prints what a variable, or a dotted field path from its node,
// references.
type ReadStep struct {
	Var   string `json:"var"`
	Field string `json:"field"`
}

// Expect checks the state of the registry.
type Expect struct {
	// Labels deinitialized since the previous expect, in order.
	// Always checked: an absent list means nothing was freed.
	Freed []string `json:"freed"`
	// Labels of live nodes, ordered by allocation. Checked when present.
	Live []string `json:"live"`
	// Strong and weak counts of the nodes referenced by variables
	Strong map[string]int32 `json:"strong"`
	Weak   map[string]int32 `json:"weak"`
}

var fatalNames = map[string]error{
	"count-underflow": arc.ErrCountUnderflow,
	"weak-underflow":  arc.ErrWeakUnderflow,
	"retain-dead":     arc.ErrRetainDead,
	"use-after-free":  arc.ErrUseAfterFree,
	"duplicate-id":    arc.ErrDuplicateID,
	"empty-handle":    arc.ErrEmptyHandle,
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := toolutils.ParseYaml(s, data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	s := &Scenario{}
	if err := toolutils.ReadYaml(s, path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the structure of every step.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidScenario)
	}
	if s.Leaks < 0 {
		return fmt.Errorf("%w: negative leak count", ErrInvalidScenario)
	}
	return validateSteps(s.Steps, "")
}

func validateSteps(steps []Step, prefix string) error {
	for i := range steps {
		pos := fmt.Sprintf("%s%d", prefix, i+1)
		if err := steps[i].validate(pos); err != nil {
			return err
		}
	}
	return nil
}

func (st *Step) validate(pos string) error {
	invalid := func(format string, v ...any) error {
		return fmt.Errorf("%w: step %s: %s", ErrInvalidScenario, pos, fmt.Sprintf(format, v...))
	}

	actions := 0
	for _, set := range []bool{
		st.New != nil, st.Declare != nil, st.Assign != nil, st.Drop != "",
		st.Link != nil, st.Capture != nil, st.Read != nil, st.Call != "",
		st.Expect != nil, st.Scope != nil,
	} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return invalid("expected exactly one action, found %d", actions)
	}
	if st.ExpectFatal != "" {
		if _, ok := fatalNames[st.ExpectFatal]; !ok {
			return invalid("unknown fatal error %q", st.ExpectFatal)
		}
	}

	switch {
	case st.New != nil:
		if st.New.Var == "" || st.New.Name == "" {
			return invalid("new needs var and name")
		}
	case st.Declare != nil:
		if st.Declare.Var == "" {
			return invalid("declare needs var")
		}
		if _, err := parseKind(st.Declare.Kind, false); err != nil {
			return invalid("%v", err)
		}
	case st.Assign != nil:
		if st.Assign.Var == "" {
			return invalid("assign needs var")
		}
	case st.Link != nil:
		if st.Link.From == "" || st.Link.Field == "" {
			return invalid("link needs from and field")
		}
		if strings.Contains(st.Link.Field, ".") {
			return invalid("link field %q must be a plain name", st.Link.Field)
		}
		kind, err := parseKind(st.Link.Kind, true)
		if err != nil {
			return invalid("%v", err)
		}
		if kind != 0 && st.Link.To == "" {
			return invalid("link of kind %s needs to", kind)
		}
	case st.Capture != nil:
		if st.Capture.Var == "" {
			return invalid("capture needs var")
		}
		switch {
		case st.Capture.List != nil:
			if st.Capture.From != "" || st.Capture.Kind != "" {
				return invalid("capture list excludes from and kind")
			}
			for _, e := range st.Capture.List {
				if e.Var == "" {
					return invalid("capture list entry needs var")
				}
				if _, err := parseKind(e.Kind, false); err != nil {
					return invalid("%v", err)
				}
			}
		case st.Capture.From == "":
			if _, err := parseKind(st.Capture.Kind, false); err != nil {
				return invalid("%v", err)
			}
		}
	case st.Read != nil:
		if st.Read.Var == "" {
			return invalid("read needs var")
		}
	case st.Scope != nil:
		return validateSteps(st.Scope, pos+".")
	}
	return nil
}

// parseKind maps a reference kind name to arc.RefKind. "none" maps to
// zero and is only accepted when allowNone is set.
func parseKind(s string, allowNone bool) (arc.RefKind, error) {
	switch strings.ToLower(s) {
	case "", "strong":
		return arc.RefStrong, nil
	case "weak":
		return arc.RefWeak, nil
	case "unowned":
		return arc.RefUnowned, nil
	case "none", "nil":
		if allowNone {
			return 0, nil
		}
	}
	return 0, fmt.Errorf("invalid reference kind %q", s)
}
