// Package config loads cookship settings.
//
// Settings are layered: built-in defaults, then an optional cookship.lua
// file, then environment variables, then command-line flags (applied by
// the caller). The Lua file runs in a sandboxed gopher-lua VM with the
// os, io, debug and module loading facilities removed, and with a
// read-only "platform" table describing the host so builds can vary by
// architecture:
//
//	cookship = {
//	  image   = "ghcr.io/example/cookcli",
//	  version = "latest",
//	  builder = platform.is_arm64 and "arm-builder" or "cookship-builder",
//	  release = {
//	    checksum_file = "SHA256SUMS",
//	  },
//	  test = {
//	    sample_dir = "./recipes",
//	    attempts   = 30,
//	    delay      = 2,
//	  },
//	  publish = {
//	    verify_auth = true,
//	    platforms   = { "amd64", "arm64" },
//	  },
//	}
//
// Every field is optional; a missing file is not an error unless its path
// was given explicitly.
package config
