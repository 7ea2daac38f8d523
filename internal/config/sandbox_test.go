package config

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestSandboxedVM(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
		errMsg  string
	}{
		// Safe operations that should work
		{
			name: "string operations allowed",
			code: `x = string.upper("hello")`,
		},
		{
			name: "table operations allowed",
			code: `t = {1, 2, 3}; table.insert(t, 4)`,
		},
		{
			name: "math operations allowed",
			code: `x = math.floor(2.5)`,
		},
		{
			name: "basic functions allowed",
			code: `x = type("hello"); y = tostring(123); z = tonumber("456")`,
		},
		{
			name: "pairs allowed",
			code: `t = {a=1, b=2}; for k,v in pairs(t) do end`,
		},

		// Dangerous operations that should fail
		{
			name:    "os.execute blocked",
			code:    `os.execute("ls")`,
			wantErr: true,
			errMsg:  "attempt to index",
		},
		{
			name:    "os.getenv blocked",
			code:    `x = os.getenv("DOCKER_PASSWORD")`,
			wantErr: true,
			errMsg:  "attempt to index",
		},
		{
			name:    "io.open blocked",
			code:    `f = io.open("/root/.docker/config.json")`,
			wantErr: true,
			errMsg:  "attempt to index",
		},
		{
			name:    "package blocked",
			code:    `x = package.path`,
			wantErr: true,
			errMsg:  "attempt to index",
		},
		{
			name:    "require blocked",
			code:    `socket = require("socket")`,
			wantErr: true,
			errMsg:  "attempt to call",
		},
		{
			name:    "dofile blocked",
			code:    `dofile("/tmp/evil.lua")`,
			wantErr: true,
			errMsg:  "attempt to call",
		},
		{
			name:    "load blocked",
			code:    `f = load("return 1+1")`,
			wantErr: true,
			errMsg:  "attempt to call",
		},
		{
			name:    "loadstring blocked",
			code:    `f = loadstring("return 1+1")`,
			wantErr: true,
			errMsg:  "attempt to call",
		},
		{
			name:    "debug blocked",
			code:    `debug.getinfo(1)`,
			wantErr: true,
			errMsg:  "attempt to index",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newSandboxedVM()
			defer L.Close()

			err := L.DoString(tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("DoString(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
				return
			}

			if tt.wantErr && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("DoString(%q) error = %v, want substring %q", tt.code, err, tt.errMsg)
			}
		})
	}
}

func TestSandboxedVM_Globals(t *testing.T) {
	L := newSandboxedVM()
	defer L.Close()

	for _, name := range []string{"os", "io", "debug", "package", "coroutine"} {
		if v := L.GetGlobal(name); v.Type() != lua.LTNil {
			t.Errorf("global %s = %v, want nil", name, v.Type())
		}
	}
	for _, name := range []string{"string", "table", "math"} {
		if v := L.GetGlobal(name); v.Type() != lua.LTTable {
			t.Errorf("global %s = %v, want table", name, v.Type())
		}
	}
}
