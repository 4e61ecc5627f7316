package main

import (
	"encoding/json"
	"io"
)

// Set at build time with -ldflags "-X main.Version=..."
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func showVersion(w io.Writer) error {
	versionInfo := map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(versionInfo)
}
