package arc_test

import (
	"strconv"
	"testing"

	"github.com/arcmem/arcmem/std/arc"
	"github.com/arcmem/arcmem/std/types/optional"
	tu "github.com/arcmem/arcmem/std/utils/testutils"
	"github.com/stretchr/testify/require"
)

type Speaker struct {
	Name      string
	Introduce arc.Closure[string]
	j         *journal
}

func (s *Speaker) Deinit() {
	s.j.add("%s is being deinitialized", s.Name)
}

func (s *Speaker) String() string {
	return s.Name
}

func introduce(self *Speaker) string {
	return "My name is " + self.Name + "."
}

func TestStrongCaptureLeaks(t *testing.T) {
	tu.SetT(t)
	r := newRegistry()
	j := &journal{}

	s := arc.Alloc(r, &Speaker{Name: "yagom", j: j}, nil)
	arc.CaptureStrong(&s.Get().Introduce, s, introduce)
	require.Equal(t, "My name is yagom.", s.Get().Introduce.Call())
	require.Equal(t, int32(2), strongCount(t, r, s.ID()))

	id := s.ID()
	s.Release()
	require.Empty(t, j.take())

	info, ok := r.Lookup(id)
	require.True(t, ok)
	require.Equal(t, arc.StateLive, info.State)
	require.Equal(t, int32(1), info.Strong)
	require.Equal(t, []arc.Edge{{Field: "Introduce", Kind: arc.RefStrong, To: id}}, info.Edges)
}

func TestUnownedCaptureFrees(t *testing.T) {
	tu.SetT(t)
	r := newRegistry()
	j := &journal{}

	s := arc.Alloc(r, &Speaker{Name: "yagom", j: j}, nil)
	arc.CaptureUnowned(&s.Get().Introduce, s, introduce)
	require.Equal(t, "My name is yagom.", s.Get().Introduce.Call())
	require.Equal(t, int32(1), strongCount(t, r, s.ID()))

	info, ok := r.Lookup(s.ID())
	require.True(t, ok)
	require.Equal(t, []arc.Edge{{Field: "Introduce", Kind: arc.RefUnowned, To: s.ID()}}, info.Edges)

	s.Release()
	require.Equal(t, []string{"yagom is being deinitialized"}, j.take())
	require.Equal(t, 0, r.Len())
}

func TestUnownedCaptureDangling(t *testing.T) {
	tu.SetT(t)
	r := newRegistry()
	j := &journal{}

	yagom := arc.Alloc(r, &Speaker{Name: "yagom", j: j}, nil)
	hana := arc.Alloc(r, &Speaker{Name: "hana", j: j}, nil)
	arc.CaptureUnowned(&yagom.Get().Introduce, yagom, introduce)
	arc.CaptureUnowned(&hana.Get().Introduce, hana, introduce)

	// hana borrows yagom's introduction, which still speaks for yagom
	hana.Get().Introduce.Bind(&yagom.Get().Introduce)
	require.Equal(t, "My name is yagom.", hana.Get().Introduce.Call())

	yagom.Release()
	require.Equal(t, []string{"yagom is being deinitialized"}, j.take())

	fe := tu.Fatal(func() { hana.Get().Introduce.Call() })
	require.ErrorIs(t, fe, arc.ErrUseAfterFree)

	hana.Release()
	require.Equal(t, []string{"hana is being deinitialized"}, j.take())
}

func TestWeakCaptureFallsBack(t *testing.T) {
	tu.SetT(t)
	r := newRegistry()
	j := &journal{}

	yagom := arc.Alloc(r, &Speaker{Name: "yagom", j: j}, nil)
	hana := arc.Alloc(r, &Speaker{Name: "hana", j: j}, nil)
	arc.CaptureWeak(&yagom.Get().Introduce, yagom, introduce,
		func() string { return "Nobody is here." })
	hana.Get().Introduce.Bind(&yagom.Get().Introduce)

	require.Equal(t, "My name is yagom.", hana.Get().Introduce.Call())
	require.Equal(t, int32(1), strongCount(t, r, yagom.ID()))

	yagom.Release()
	require.Equal(t, []string{"yagom is being deinitialized"}, j.take())
	require.Equal(t, "Nobody is here.", hana.Get().Introduce.Call())

	hana.Release()
	require.Equal(t, []string{"hana is being deinitialized"}, j.take())
	require.Equal(t, 0, r.Len())
}

func TestStrongCaptureBrokenByUnbind(t *testing.T) {
	tu.SetT(t)
	r := newRegistry()
	j := &journal{}

	s := arc.Alloc(r, &Speaker{Name: "yagom", j: j}, nil)
	arc.CaptureStrong(&s.Get().Introduce, s, introduce)
	s.Get().Introduce.Unbind()
	require.False(t, s.Get().Introduce.IsBound())
	require.Equal(t, int32(1), strongCount(t, r, s.ID()))

	s.Release()
	require.Equal(t, []string{"yagom is being deinitialized"}, j.take())
}

type Value struct {
	N int
}

func TestCaptureList(t *testing.T) {
	tu.SetT(t)
	r := newRegistry()

	x := arc.Alloc(r, &Value{}, nil)
	y := arc.Alloc(r, &Value{}, nil)
	xid := x.ID()

	var closure arc.Closure[string]
	arc.CaptureList(&closure, func(in *arc.Captures) string {
		require.Equal(t, 2, in.Len())
		xv := optional.Map(arc.Load[*Value](in, 0), func(v *Value) string { return strconv.Itoa(v.N) })
		yv := arc.Get[*Value](in, 1)
		return xv.GetOr("nil") + " " + strconv.Itoa(yv.N)
	}, arc.WeakRef(x), arc.UnownedRef(y))

	info, ok := r.Lookup(xid)
	require.True(t, ok)
	require.Equal(t, int32(1), info.Strong)
	require.Equal(t, int32(1), info.Weak)
	require.Equal(t, int32(1), strongCount(t, r, y.ID()))

	x.Get().N = 5
	require.Equal(t, "5 0", closure.Call())

	x.Release()
	y.Get().N = 10
	require.Equal(t, "nil 10", closure.Call())

	// the weak entry keeps the torn down block registered
	info, ok = r.Lookup(xid)
	require.True(t, ok)
	require.Equal(t, arc.StateTornDown, info.State)

	y.Release()
	fe := tu.Fatal(func() { closure.Call() })
	require.ErrorIs(t, fe, arc.ErrUseAfterFree)

	closure.Unbind()
	require.Equal(t, 0, r.Len())
}

func TestCaptureListBind(t *testing.T) {
	tu.SetT(t)
	r := newRegistry()
	j := &journal{}

	a := arc.Alloc(r, &Speaker{Name: "a", j: j}, nil)
	b := arc.Alloc(r, &Speaker{Name: "b", j: j}, nil)
	arc.CaptureList(&a.Get().Introduce, func(in *arc.Captures) string {
		return arc.Get[*Speaker](in, 0).Name + "+" + arc.Get[*Speaker](in, 1).Name
	}, arc.StrongRef(b), arc.WeakRef(a))

	info, ok := r.Lookup(a.ID())
	require.True(t, ok)
	require.Equal(t, []arc.Edge{
		{Field: "Introduce", Kind: arc.RefStrong, To: b.ID()},
		{Field: "Introduce", Kind: arc.RefWeak, To: a.ID()},
	}, info.Edges)

	b.Get().Introduce.Bind(&a.Get().Introduce)
	require.Equal(t, "b+a", a.Get().Introduce.Call())
	require.Equal(t, "b+a", b.Get().Introduce.Call())
	// b holds itself through the shared closure
	require.Equal(t, int32(3), strongCount(t, r, b.ID()))

	b.Get().Introduce.Unbind()
	b.Release()
	require.Empty(t, j.take())
	a.Release()
	require.Equal(t, []string{"a is being deinitialized", "b is being deinitialized"}, j.take())
	require.Equal(t, 0, r.Len())
}
