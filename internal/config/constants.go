package config

// Lua schema field names and globals
const (
	luaGlobalCookship = "cookship"

	luaFieldVersion = "version"
	luaFieldImage   = "image"
	luaFieldBuilder = "builder"
	luaFieldContext = "context"

	luaFieldRelease      = "release"
	luaFieldBaseURL      = "base_url"
	luaFieldChecksumFile = "checksum_file"
	luaFieldKeyring      = "keyring"

	luaFieldTest      = "test"
	luaFieldSampleDir = "sample_dir"
	luaFieldPort      = "port"
	luaFieldAttempts  = "attempts"
	luaFieldDelay     = "delay"

	luaFieldPublish    = "publish"
	luaFieldVerifyAuth = "verify_auth"
	luaFieldPlatforms  = "platforms"
)

// Environment variables consulted by Load.
const (
	EnvConfig      = "COOKSHIP_CONFIG"
	EnvVersion     = "VERSION"
	EnvImage       = "IMAGE"
	EnvGitHubToken = "GITHUB_TOKEN"
)

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "cookship.lua"
