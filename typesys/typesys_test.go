package typesys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	varSize int
	base    *fakeModule
	ifaces  map[*fakeModule]bool
}

func (m *fakeModule) VarSize() int { return m.varSize }
func (m *fakeModule) IsSubclassOf(other Module) bool {
	o, ok := other.(*fakeModule)
	if !ok {
		return false
	}
	for b := m; b != nil; b = b.base {
		if b == o {
			return true
		}
	}
	return false
}
func (m *fakeModule) ImplementsInterface(iface Module) bool {
	i, ok := iface.(*fakeModule)
	if !ok {
		return false
	}
	return m.ifaces[i]
}

func TestSizeScalars(t *testing.T) {
	assert.Equal(t, 1, Size(NewInt(1)))
	assert.Equal(t, 4, Size(NewUInt(4)))
	assert.Equal(t, 8, Size(NewFloat(8)))
	assert.Equal(t, 4, Size(NewPointer(NewInt(1))))
	assert.Equal(t, 0, Size(NewVoid()))
}

func TestSizeArray(t *testing.T) {
	arr := NewArray(NewInt(4), 10)
	assert.Equal(t, 40, Size(arr))

	flexible := NewArray(NewInt(4), -1)
	assert.Equal(t, PointerSize, Size(flexible))
}

func TestSizeObjectTriggersModuleVarSize(t *testing.T) {
	m := &fakeModule{varSize: 128}
	obj := NewObject(m)
	assert.Equal(t, 128, Size(obj))
}

func TestSizeTuple(t *testing.T) {
	tup := NewTuple([]*Type{NewInt(4), NewInt(4), NewInt(1)})
	assert.Equal(t, 9, Size(tup))
}

func TestAlignment(t *testing.T) {
	assert.Equal(t, 1, Alignment(NewInt(1)))
	assert.Equal(t, 4, Alignment(NewInt(8)), "alignment never exceeds a long")
	assert.Equal(t, 4, Alignment(NewObject(&fakeModule{varSize: 4})))
}

func TestRemoveModifiersStripsConstVolatileOnly(t *testing.T) {
	base := NewInt(4)
	base.Const = true
	base.Volatile = true
	stripped := RemoveModifiers(base)
	assert.False(t, stripped.Const)
	assert.False(t, stripped.Volatile)
	assert.Equal(t, KindInt, stripped.Kind)
	assert.True(t, base.Const, "RemoveModifiers must not mutate its input")
}

func TestGoesOnStack(t *testing.T) {
	assert.False(t, GoesOnStack(NewInt(4)))
	assert.True(t, GoesOnStack(NewArray(NewInt(1), 20)), "large array goes on stack")
	assert.True(t, GoesOnStack(NewArray(NewInt(1), 2)), "non-long-only array always goes on stack")
	assert.False(t, GoesOnStack(NewArray(NewInt(4), 2)), "small long-only array fits in registers")
	assert.True(t, GoesOnStack(NewObject(&fakeModule{varSize: 4})), "objects always go by reference")
}

func TestDereference(t *testing.T) {
	elem := NewInt(4)
	ptr := NewPointer(elem)
	got, err := Dereference(ptr)
	require.NoError(t, err)
	assert.Same(t, elem, got)

	_, err = Dereference(NewInt(4))
	assert.Error(t, err)
}

func TestCompatibleSubclass(t *testing.T) {
	base := &fakeModule{varSize: 4}
	derived := &fakeModule{varSize: 8, base: base}
	assert.True(t, Compatible(NewObject(derived), NewObject(base)))
	assert.True(t, Compatible(NewObject(base), NewObject(derived)))

	unrelated := &fakeModule{varSize: 4}
	assert.False(t, Compatible(NewObject(derived), NewObject(unrelated)))
}

func TestCompatibleInterface(t *testing.T) {
	iface := &fakeModule{}
	impl := &fakeModule{ifaces: map[*fakeModule]bool{iface: true}}
	assert.True(t, Compatible(NewObject(impl), NewObject(iface)))
}

func TestCompatibleGenericAcceptsAnything(t *testing.T) {
	assert.True(t, Compatible(NewGeneric(), NewInt(4)))
	assert.True(t, Compatible(NewFloat(4), NewGeneric()))
}

func TestCompatibleFunction(t *testing.T) {
	a := NewFunction(NewInt(4), []*Type{NewInt(4), NewInt(1)}, false)
	b := NewFunction(NewInt(4), []*Type{NewInt(4), NewInt(1)}, false)
	c := NewFunction(NewInt(4), []*Type{NewInt(4)}, false)
	assert.True(t, Compatible(a, b))
	assert.False(t, Compatible(a, c))
}

func TestInterfacePtrTableDeduplicates(t *testing.T) {
	tab := NewInterfacePtrTable()
	class := &fakeModule{}
	iface := &fakeModule{}
	calls := 0
	resolve := func() []interface{} {
		calls++
		return []interface{}{"method1"}
	}
	first := tab.GetOrCreate(class, iface, resolve)
	second := tab.GetOrCreate(class, iface, resolve)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls, "resolve must run once per (class, iface) pair")
	assert.Len(t, tab.All(), 1)
}
