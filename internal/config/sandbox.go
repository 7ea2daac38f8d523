package config

import (
	lua "github.com/yuin/gopher-lua"
)

// safeLibs are the only standard libraries opened in a config VM.
var safeLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// blockedGlobals are base-library functions that load code or touch the
// filesystem.
var blockedGlobals = []string{
	"require", "module", "dofile", "loadfile", "load", "loadstring",
	"getfenv", "setfenv", "collectgarbage", "print",
}

// newSandboxedVM creates a Lua VM for declarative configs: os, io,
// package, channel, coroutine and debug are never opened, and the
// blocked base functions are removed.
func newSandboxedVM() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range safeLibs {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
