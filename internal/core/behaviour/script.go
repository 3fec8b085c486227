package behaviour

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/zeusync/behaviour/internal/core/observability/log"
)

// Script is a condition written in Lua. The chunk must return a boolean, e.g.
//
//	return state("health") < 20 and not state("fleeing")
//
// The source is compiled once per template; every clone runs it in its own
// sandboxed VM since an LState cannot be shared between owners.
type Script struct {
	baseCondition
	proto   *lua.FunctionProto
	timeout time.Duration
	vm      *lua.LState
	b       *Behaviour
}

// DefaultScriptTimeout bounds one evaluation of a script condition.
const DefaultScriptTimeout = 50 * time.Millisecond

// NewScript compiles source. name labels the condition in logs.
func NewScript(name, source string) (*Script, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: script %q is empty", ErrInvalidConfig, name)
	}
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, fmt.Errorf("%w: script %q: %v", ErrInvalidConfig, name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("%w: script %q: %v", ErrInvalidConfig, name, err)
	}
	return &Script{baseCondition: baseCondition{"Script(" + name + ")"}, proto: proto, timeout: DefaultScriptTimeout}, nil
}

// SetTimeout changes the per-evaluation budget. A script still running when
// it expires is aborted and the condition fails.
func (s *Script) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

func (s *Script) Init(b *Behaviour) error {
	if s.vm != nil {
		return errors.New("script already bound")
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	sandbox(L)
	s.b = b
	L.SetGlobal("state", L.NewFunction(s.luaState))
	L.SetGlobal("owner_id", lua.LString(b.Owner().ID()))
	L.SetGlobal("owner_name", lua.LString(b.Owner().Name()))
	L.SetGlobal("behaviour", lua.LString(b.Name()))
	s.vm = L
	return nil
}

func (s *Script) Result(b *Behaviour) bool {
	L := s.vm
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	L.Push(L.NewFunctionFromProto(s.proto))
	if err := L.PCall(0, 1, nil); err != nil {
		if ctx.Err() != nil {
			s.logger(b).Warn("script condition timed out",
				log.String("condition", s.name), log.Duration("timeout", s.timeout))
			return false
		}
		s.logger(b).Warn("script condition failed", log.String("condition", s.name), log.Error(err))
		return false
	}
	ret := L.Get(-1)
	L.Pop(1)
	v, ok := ret.(lua.LBool)
	if !ok {
		s.logger(b).Warn("script condition returned non-boolean",
			log.String("condition", s.name), log.String("type", ret.Type().String()))
		return false
	}
	return bool(v)
}

func (s *Script) Clone() Condition {
	return &Script{baseCondition: s.baseCondition, proto: s.proto, timeout: s.timeout}
}

// Close releases the VM.
func (s *Script) Close() error {
	if s.vm != nil {
		s.vm.Close()
		s.vm = nil
	}
	return nil
}

func (s *Script) logger(b *Behaviour) log.Log {
	return b.Controller().Logger().With(log.Owner(b.Owner().ID()), log.Behaviour(b.Name()))
}

// luaState implements state(key) -> value|nil.
func (s *Script) luaState(L *lua.LState) int {
	key := L.CheckString(1)
	v, ok := s.b.Owner().State().Get(key)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(toLua(v))
	return 1
}

func toLua(v any) lua.LValue {
	switch tv := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(tv)
	case string:
		return lua.LString(tv)
	case float64:
		return lua.LNumber(tv)
	case float32:
		return lua.LNumber(tv)
	case int:
		return lua.LNumber(tv)
	case int64:
		return lua.LNumber(tv)
	case int32:
		return lua.LNumber(tv)
	default:
		return lua.LString(fmt.Sprint(tv))
	}
}

// openSafeLibs opens only the base, table, string and math libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes globals that load code or touch the host.
func sandbox(L *lua.LState) {
	for _, name := range []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage", "print",
	} {
		L.SetGlobal(name, lua.LNil)
	}
	if mathTbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		mathTbl.RawSetString("randomseed", lua.LNil)
	}
}
