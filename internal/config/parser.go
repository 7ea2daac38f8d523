package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
)

// parseTimeout bounds evaluation of a config file.
const parseTimeout = 5 * time.Second

// Parser represents a Lua config parser with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new config parser with the given platform detector.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseFile parses the Lua file at path on top of base.
func (p *Parser) ParseFile(ctx context.Context, path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return p.ParseString(ctx, string(data), base)
}

// ParseString parses a Lua config from a string. Fields present in the
// "cookship" table override the matching fields of a copy of base; base
// itself is never modified. A nil base starts from Default().
func (p *Parser) ParseString(ctx context.Context, luaCode string, base *Config) (*Config, error) {
	L := newSandboxedVM()
	defer L.Close()

	ctx, cancel := context.WithTimeout(ctx, parseTimeout)
	defer cancel()
	L.SetContext(ctx)

	// Detect platform and inject platform table
	if p.detector != nil {
		platformInfo, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, platformInfo); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	// Execute Lua code
	if err := L.DoString(luaCode); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &ParseError{Message: "config evaluation timed out", Detail: err.Error()}
		}
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	if base == nil {
		base = Default()
	}
	cfg := base.clone()

	if err := extractConfig(L, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ParseError{
			Message: "config validation failed",
			Detail:  err.Error(),
		}
	}
	return cfg, nil
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// clone copies c, including its platform list.
func (c *Config) clone() *Config {
	out := *c
	out.Publish.Platforms = append([]platform.Arch(nil), c.Publish.Platforms...)
	return &out
}

// extractConfig reads the global "cookship" table into cfg.
func extractConfig(L *lua.LState, cfg *Config) error {
	global := L.GetGlobal(luaGlobalCookship)
	if global.Type() != lua.LTTable {
		return &ParseError{
			Message: fmt.Sprintf("missing or invalid '%s' table", luaGlobalCookship),
			Detail:  fmt.Sprintf("expected table, got %s", global.Type()),
		}
	}
	table := global.(*lua.LTable)

	r := &reader{}
	r.str(table, luaFieldVersion, &cfg.Version)
	r.str(table, luaFieldImage, &cfg.Image)
	r.str(table, luaFieldBuilder, &cfg.Builder)
	r.str(table, luaFieldContext, &cfg.Context)

	if release := r.table(table, luaFieldRelease); release != nil {
		r.str(release, luaFieldBaseURL, &cfg.Release.BaseURL)
		r.str(release, luaFieldChecksumFile, &cfg.Release.ChecksumFile)
		r.str(release, luaFieldKeyring, &cfg.Release.KeyringPath)
	}

	if test := r.table(table, luaFieldTest); test != nil {
		r.str(test, luaFieldSampleDir, &cfg.Test.SampleDir)
		r.integer(test, luaFieldPort, &cfg.Test.Port)
		r.integer(test, luaFieldAttempts, &cfg.Test.Attempts)
		r.duration(test, luaFieldDelay, &cfg.Test.Delay)
	}

	if publish := r.table(table, luaFieldPublish); publish != nil {
		r.boolean(publish, luaFieldVerifyAuth, &cfg.Publish.VerifyAuth)
		r.platforms(publish, luaFieldPlatforms, &cfg.Publish.Platforms)
	}

	return r.err
}

// reader extracts typed fields, keeping the first type error.
type reader struct {
	err error
}

func (r *reader) fail(field, want string, got lua.LValue) {
	if r.err != nil {
		return
	}
	r.err = &ParseError{
		Message: fmt.Sprintf("invalid value for '%s'", field),
		Detail:  fmt.Sprintf("expected %s, got %s", want, got.Type()),
	}
}

func (r *reader) table(t *lua.LTable, field string) *lua.LTable {
	v := t.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTTable:
		return v.(*lua.LTable)
	}
	r.fail(field, "table", v)
	return nil
}

func (r *reader) str(t *lua.LTable, field string, dst *string) {
	v := t.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
	case lua.LTString:
		*dst = v.String()
	default:
		r.fail(field, "string", v)
	}
}

func (r *reader) integer(t *lua.LTable, field string, dst *int) {
	v := t.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
	case lua.LTNumber:
		n := float64(lua.LVAsNumber(v))
		if n != float64(int(n)) {
			r.fail(field, "integer", v)
			return
		}
		*dst = int(n)
	default:
		r.fail(field, "number", v)
	}
}

func (r *reader) boolean(t *lua.LTable, field string, dst *bool) {
	v := t.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
	case lua.LTBool:
		*dst = bool(v.(lua.LBool))
	default:
		r.fail(field, "boolean", v)
	}
}

// duration accepts seconds as a number or a Go duration string ("1500ms").
func (r *reader) duration(t *lua.LTable, field string, dst *time.Duration) {
	v := t.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
	case lua.LTNumber:
		*dst = time.Duration(float64(lua.LVAsNumber(v)) * float64(time.Second))
	case lua.LTString:
		d, err := time.ParseDuration(v.String())
		if err != nil {
			if r.err == nil {
				r.err = &ParseError{Message: fmt.Sprintf("invalid value for '%s'", field), Detail: err.Error()}
			}
			return
		}
		*dst = d
	default:
		r.fail(field, "number or duration string", v)
	}
}

// platforms reads an array of architecture names. Nil entries produced
// by platform conditionals are skipped.
func (r *reader) platforms(t *lua.LTable, field string, dst *[]platform.Arch) {
	v := t.RawGetString(field)
	if v.Type() == lua.LTNil {
		return
	}
	list, ok := v.(*lua.LTable)
	if !ok {
		r.fail(field, "array of strings", v)
		return
	}

	var arches []platform.Arch
	list.ForEach(func(_, value lua.LValue) {
		if value.Type() == lua.LTNil || r.err != nil {
			return
		}
		if value.Type() != lua.LTString {
			r.fail(field, "array of strings", value)
			return
		}
		arch, err := platform.ParseArch(value.String())
		if err != nil {
			r.err = &ParseError{Message: fmt.Sprintf("invalid value for '%s'", field), Detail: err.Error()}
			return
		}
		arches = append(arches, arch)
	})
	if r.err == nil {
		*dst = arches
	}
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		// Extract the most relevant part of the error
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
