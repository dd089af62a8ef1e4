// Package config contains the configuration of the client and of the
// injector. We read the configuration from a file inside the repo
// directory and then apply the command line flags the user explicitly
// set, which take precedence over the values in the file.
//
// The file is TOML where values may also be unquoted, as in
//
//	listen-on-tcp = 127.0.0.1:8077
//	fetch-timeout = 30s
//
// in which case we read them as strings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
)

const (
	// ClientFile is the name of the client config file inside the repo.
	ClientFile = "ouinet-client.conf"

	// InjectorFile is the name of the injector config file inside the repo.
	InjectorFile = "ouinet-injector.conf"
)

// Duration is a [time.Duration] that we can read from a TOML
// string (e.g., "15s") and from the command line.
type Duration time.Duration

var _ pflag.Value = new(Duration)

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(data []byte) error {
	value, err := time.ParseDuration(string(data))
	if err != nil {
		return err
	}
	*d = Duration(value)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Set implements pflag.Value.
func (d *Duration) Set(value string) error {
	return d.UnmarshalText([]byte(value))
}

// String implements pflag.Value.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// Type implements pflag.Value.
func (d Duration) Type() string {
	return "duration"
}

// Std returns the duration as a [time.Duration].
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load decodes the TOML file at path into v and then re-applies the flags
// in flags that the user explicitly set. A missing file is not an error.
// Unknown keys are an error, to catch typos.
func Load(flags *pflag.FlagSet, path string, v any) error {
	changed := map[string]string{}
	flags.Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})
	if err := decodeFile(path, v); err != nil {
		return err
	}
	for name, value := range changed {
		if err := flags.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// decodeFile decodes the TOML file at path into v.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	decoder := toml.NewDecoder(bytes.NewReader(quoteBareValues(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("config: %s: %w", filepath.Base(path), err)
	}
	return nil
}

// quoteBareValues rewrites the "key = value" lines whose value is not
// valid TOML as "key = <quoted value>". A " #" after a bare value starts
// a comment. We preserve the number of lines, so decoding errors point
// to the right line.
func quoteBareValues(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	for idx, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "[") {
			continue
		}
		key, value, found := strings.Cut(trimmed, "=")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		if isTOMLValue(value) {
			continue
		}
		lines[idx] = strings.TrimSpace(key) + " = " + quoteValue(stripComment(value))
	}
	return []byte(strings.Join(lines, "\n"))
}

// isTOMLValue returns whether value is a valid TOML value.
func isTOMLValue(value string) bool {
	var doc map[string]any
	return toml.Unmarshal([]byte("v = "+value), &doc) == nil
}

// stripComment removes a trailing comment from a bare value.
func stripComment(value string) string {
	for idx := 1; idx < len(value); idx++ {
		if value[idx] == '#' && (value[idx-1] == ' ' || value[idx-1] == '\t') {
			return strings.TrimSpace(value[:idx])
		}
	}
	return value
}

// quoteValue returns value as a TOML basic string.
func quoteValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `"`, `\"`)
	return `"` + value + `"`
}

// ErrEmptyCommandLine indicates that a command line contains no arguments.
var ErrEmptyCommandLine = errors.New("config: empty command line")

// SplitCommandLine splits a command line using shell quoting rules.
func SplitCommandLine(cmdline string) ([]string, error) {
	argv, err := shlex.Split(cmdline)
	if err != nil {
		return nil, err
	}
	if len(argv) < 1 {
		return nil, ErrEmptyCommandLine
	}
	return argv, nil
}
