package scenario

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/arcmem/arcmem/std/arc"
	"github.com/arcmem/arcmem/std/arc/diag"
	"github.com/arcmem/arcmem/std/log"
)

// Options configures a run.
type Options struct {
	// Registry options. Synchronized is also set by the scenario itself.
	Arc arc.Options
	// Out receives transcript lines as they are produced.
	Out io.Writer
}

// Result is the outcome of a completed run.
type Result struct {
	Name       string
	Transcript []string
	// Leaked lists the objects still registered after every variable was
	// dropped.
	Leaked []arc.ObjectInfo
	Cycles []diag.Cycle
	Stats  arc.Stats
}

// Write prints the transcript followed by a leak report.
func (res *Result) Write(w io.Writer) error {
	for _, line := range res.Transcript {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return res.WriteLeaks(w)
}

// WriteLeaks prints the leaked objects and the cycles holding them.
// Nothing is printed when every object was reclaimed.
func (res *Result) WriteLeaks(w io.Writer) error {
	if len(res.Leaked) == 0 {
		return nil
	}
	labels := make([]string, 0, len(res.Leaked))
	for _, info := range res.Leaked {
		labels = append(labels, info.Label)
	}
	if _, err := fmt.Fprintf(w, "Leaked %d: %s\n", len(res.Leaked), strings.Join(labels, ", ")); err != nil {
		return err
	}
	return diag.Report(w, res.Cycles)
}

// errNoFatal matches no fatal error.
var errNoFatal = errors.New("scenario: no fatal error expected")

type variable struct {
	name    string
	kind    arc.RefKind
	strong  arc.Strong[*Node]
	weak    arc.Weak[*Node]
	unowned arc.Unowned[*Node]
}

func (v *variable) id() arc.ID {
	switch v.kind {
	case arc.RefWeak:
		return v.weak.ID()
	case arc.RefUnowned:
		return v.unowned.ID()
	}
	return v.strong.ID()
}

func (v *variable) clear() {
	v.strong.Unbind()
	v.weak.Unbind()
	v.unowned.Unbind()
}

// Runner executes one scenario against its own registry.
type Runner struct {
	s   *Scenario
	reg *arc.Registry
	log *log.Logger
	out io.Writer

	vars  map[string]*variable
	order []string

	transcript []string
	freed      []string
}

// NewRunner prepares a run of s.
func NewRunner(s *Scenario, opts Options) *Runner {
	aopts := opts.Arc
	aopts.Synchronized = aopts.Synchronized || s.Synchronized
	r := &Runner{
		s:    s,
		reg:  arc.NewRegistry(aopts),
		log:  aopts.Logger,
		out:  opts.Out,
		vars: make(map[string]*variable),
	}
	if r.log == nil {
		r.log = log.Default()
	}
	return r
}

func (r *Runner) String() string {
	return "scenario-" + r.s.Name
}

// Registry returns the registry the scenario runs against.
func (r *Runner) Registry() *arc.Registry {
	return r.reg
}

// Run executes s with a fresh registry.
func Run(s *Scenario, opts Options) (*Result, error) {
	return NewRunner(s, opts).Run()
}

// Run executes every step, drops all remaining variables and reports
// what could not be reclaimed.
func (r *Runner) Run() (*Result, error) {
	r.log.Info(r, "Scenario started", "steps", len(r.s.Steps), "registry", r.reg)

	if err := r.steps(r.s.Steps, ""); err != nil {
		r.log.Error(r, "Scenario failed", "err", err)
		return nil, err
	}
	r.dropFrom(0)

	res := &Result{
		Name:       r.s.Name,
		Transcript: r.transcript,
		Stats:      r.reg.Stats(),
	}
	snapshot := r.reg.Snapshot()
	for _, info := range snapshot {
		if info.State == arc.StateLive {
			res.Leaked = append(res.Leaked, info)
		}
	}
	res.Cycles = diag.Cycles(snapshot)

	if len(res.Leaked) != r.s.Leaks {
		return res, fmt.Errorf("%w: %d objects leaked, want %d", ErrExpectation, len(res.Leaked), r.s.Leaks)
	}
	r.log.Info(r, "Scenario finished", "leaked", len(res.Leaked), "cycles", len(res.Cycles))
	return res, nil
}

func (r *Runner) steps(steps []Step, prefix string) error {
	for i := range steps {
		pos := fmt.Sprintf("%s%d", prefix, i+1)
		if err := r.step(&steps[i], pos); err != nil {
			return err
		}
	}
	return nil
}

// step runs one step and turns its fatal error, if expected, into a
// transcript line.
func (r *Runner) step(st *Step, pos string) (err error) {
	r.log.Debug(r, "Step", "pos", pos)

	want := fatalNames[st.ExpectFatal]
	if want == nil {
		want = errNoFatal
	}
	fe := r.reg.Expect(want, func() {
		err = r.exec(st, pos)
	})
	switch {
	case fe != nil && errors.Is(fe, want):
		r.emit("fatal: " + fe.Err.Error())
		return nil
	case fe != nil:
		return fmt.Errorf("step %s: %w", pos, fe)
	case err != nil:
		return err
	case st.ExpectFatal != "":
		return fmt.Errorf("%w: step %s: no fatal error, want %s", ErrExpectation, pos, st.ExpectFatal)
	}
	return nil
}

func (r *Runner) exec(st *Step, pos string) error {
	fail := func(format string, v ...any) error {
		return fmt.Errorf("%w: step %s: %s", ErrInvalidScenario, pos, fmt.Sprintf(format, v...))
	}

	switch {
	case st.New != nil:
		return r.doNew(st.New, fail)
	case st.Declare != nil:
		kind, _ := parseKind(st.Declare.Kind, false)
		if _, ok := r.vars[st.Declare.Var]; ok {
			return fail("variable %q already declared", st.Declare.Var)
		}
		r.declare(st.Declare.Var, kind)
	case st.Assign != nil:
		return r.doAssign(st.Assign, fail)
	case st.Drop != "":
		v, ok := r.vars[st.Drop]
		if !ok {
			return fail("unknown variable %q", st.Drop)
		}
		v.clear()
	case st.Link != nil:
		return r.doLink(st.Link, fail)
	case st.Capture != nil:
		return r.doCapture(st.Capture, fail)
	case st.Read != nil:
		return r.doRead(st.Read, fail)
	case st.Call != "":
		self, err := r.resolve(st.Call, fail)
		if err != nil {
			return err
		}
		if self == nil {
			r.emit("nil")
			return nil
		}
		defer self.Release()
		r.emit(self.Get().Introduce.Call())
	case st.Expect != nil:
		return r.doExpect(st.Expect, pos)
	case st.Scope != nil:
		mark := len(r.order)
		if err := r.steps(st.Scope, pos+"."); err != nil {
			return err
		}
		r.dropFrom(mark)
	}
	return nil
}

func (r *Runner) declare(name string, kind arc.RefKind) *variable {
	v := &variable{name: name, kind: kind}
	r.vars[name] = v
	r.order = append(r.order, name)
	return v
}

// dropFrom unbinds and forgets every variable declared at or after mark,
// most recent first.
func (r *Runner) dropFrom(mark int) {
	for i := len(r.order) - 1; i >= mark; i-- {
		name := r.order[i]
		r.vars[name].clear()
		delete(r.vars, name)
	}
	r.order = r.order[:mark]
}

func (r *Runner) emit(line string) {
	r.transcript = append(r.transcript, line)
	if r.out != nil {
		fmt.Fprintln(r.out, line)
	}
}

func (r *Runner) onDeinit(label string) {
	r.freed = append(r.freed, label)
	r.emit(label + " is being deinitialized")
}

// resolve returns a new strong handle to what a variable references,
// or nil. The caller releases it.
func (r *Runner) resolve(name string, fail func(string, ...any) error) (*arc.Strong[*Node], error) {
	v, ok := r.vars[name]
	if !ok {
		return nil, fail("unknown variable %q", name)
	}
	switch v.kind {
	case arc.RefWeak:
		return v.weak.Upgrade(), nil
	case arc.RefUnowned:
		if !v.unowned.IsBound() {
			return nil, nil
		}
		return v.unowned.Strong(), nil
	}
	if !v.strong.IsBound() {
		return nil, nil
	}
	return v.strong.Clone(), nil
}

func (r *Runner) bindVar(v *variable, to *arc.Strong[*Node]) {
	switch v.kind {
	case arc.RefWeak:
		v.weak.Bind(to)
	case arc.RefUnowned:
		v.unowned.Bind(to)
	default:
		v.strong.Bind(to)
	}
}

func (r *Runner) doNew(st *NewStep, fail func(string, ...any) error) error {
	v, ok := r.vars[st.Var]
	if !ok {
		v = r.declare(st.Var, arc.RefStrong)
	}
	if v.kind != arc.RefStrong {
		return fail("new needs a strong variable, %q is %s", st.Var, v.kind)
	}
	h := arc.Alloc(r.reg, &Node{
		Type:   st.Type,
		Name:   st.Name,
		Hobby:  st.Hobby,
		deinit: r.onDeinit,
	}, nil)
	v.strong.Bind(h)
	h.Release()
	return nil
}

func (r *Runner) doAssign(st *AssignStep, fail func(string, ...any) error) error {
	var src *arc.Strong[*Node]
	if st.From != "" {
		var err error
		if src, err = r.resolve(st.From, fail); err != nil {
			return err
		}
		if src != nil {
			defer src.Release()
		}
	}
	v, ok := r.vars[st.Var]
	if !ok {
		v = r.declare(st.Var, arc.RefStrong)
	}
	r.bindVar(v, src)
	return nil
}

func (r *Runner) doLink(st *LinkStep, fail func(string, ...any) error) error {
	kind, _ := parseKind(st.Kind, true)
	from, err := r.resolve(st.From, fail)
	if err != nil {
		return err
	}
	if from == nil {
		return fail("link from %q, which is nil", st.From)
	}
	defer from.Release()

	var to *arc.Strong[*Node]
	if kind != 0 {
		if to, err = r.resolve(st.To, fail); err != nil {
			return err
		}
		if to != nil {
			defer to.Release()
		}
	}
	if to == nil {
		kind = 0
	}
	from.Get().field(st.Field, true).set(kind, to)
	return nil
}

func (r *Runner) doCapture(st *CaptureStep, fail func(string, ...any) error) error {
	self, err := r.resolve(st.Var, fail)
	if err != nil {
		return err
	}
	if self == nil {
		return fail("capture into %q, which is nil", st.Var)
	}
	defer self.Release()
	dst := &self.Get().Introduce

	if st.List != nil {
		return r.captureList(dst, st.List, fail)
	}

	if st.From != "" {
		src, err := r.resolve(st.From, fail)
		if err != nil {
			return err
		}
		if src == nil {
			dst.Unbind()
			return nil
		}
		defer src.Release()
		dst.Bind(&src.Get().Introduce)
		return nil
	}

	kind, _ := parseKind(st.Kind, false)
	switch kind {
	case arc.RefStrong:
		arc.CaptureStrong(dst, self, introduce)
	case arc.RefWeak:
		fallback := st.Fallback
		arc.CaptureWeak(dst, self, introduce, func() string { return fallback })
	case arc.RefUnowned:
		arc.CaptureUnowned(dst, self, introduce)
	}
	return nil
}

func (r *Runner) captureList(dst *arc.Closure[string], list []CaptureEntry, fail func(string, ...any) error) error {
	handles := make([]*arc.Strong[*Node], 0, len(list))
	defer func() {
		for _, h := range handles {
			h.Release()
		}
	}()
	for _, e := range list {
		h, err := r.resolve(e.Var, fail)
		if err != nil {
			return err
		}
		if h == nil {
			return fail("capture of %q, which is nil", e.Var)
		}
		handles = append(handles, h)
	}

	caps := make([]arc.Capture, 0, len(list))
	for i, e := range list {
		kind, _ := parseKind(e.Kind, false)
		switch kind {
		case arc.RefStrong:
			caps = append(caps, arc.StrongRef(handles[i]))
		case arc.RefWeak:
			caps = append(caps, arc.WeakRef(handles[i]))
		case arc.RefUnowned:
			caps = append(caps, arc.UnownedRef(handles[i]))
		}
	}
	arc.CaptureList(dst, describe, caps...)
	return nil
}

func (r *Runner) doRead(st *ReadStep, fail func(string, ...any) error) error {
	cur, err := r.resolve(st.Var, fail)
	if err != nil {
		return err
	}
	path := st.Var
	if st.Field != "" {
		for _, name := range strings.Split(st.Field, ".") {
			if cur == nil {
				break
			}
			cur = follow(cur, name)
		}
		path += "." + st.Field
	}
	if cur == nil {
		r.emit(path + " = nil")
		return nil
	}
	defer cur.Release()
	r.emit(path + " = " + cur.Get().String())
	return nil
}

// follow releases cur and returns a handle to the referent of its field.
func follow(cur *arc.Strong[*Node], name string) *arc.Strong[*Node] {
	defer cur.Release()
	if f := cur.Get().field(name, false); f != nil {
		return f.resolve()
	}
	return nil
}

func (r *Runner) doExpect(e *Expect, pos string) error {
	mismatch := func(what string, got, want any) error {
		return fmt.Errorf("%w: step %s: %s is %v, want %v", ErrExpectation, pos, what, got, want)
	}

	freed := r.freed
	r.freed = nil
	if !slices.Equal(freed, e.Freed) {
		return mismatch("freed", freed, e.Freed)
	}

	if e.Live != nil {
		var live []string
		for _, info := range r.reg.Snapshot() {
			if info.State == arc.StateLive {
				live = append(live, info.Label)
			}
		}
		if !slices.Equal(live, e.Live) {
			return mismatch("live", live, e.Live)
		}
	}

	for _, name := range sortedKeys(e.Strong) {
		if got := r.counts(name).Strong; got != e.Strong[name] {
			return mismatch("strong count of "+name, got, e.Strong[name])
		}
	}
	for _, name := range sortedKeys(e.Weak) {
		if got := r.counts(name).Weak; got != e.Weak[name] {
			return mismatch("weak count of "+name, got, e.Weak[name])
		}
	}
	return nil
}

// counts describes the object a variable references. Unknown variables
// and reclaimed objects report zero counts.
func (r *Runner) counts(name string) (info arc.ObjectInfo) {
	v, ok := r.vars[name]
	if !ok || v.id() == 0 {
		return info
	}
	info, _ = r.reg.Lookup(v.id())
	return info
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
