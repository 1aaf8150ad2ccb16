package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-ini/ini"
)

// EnvConfigPath names the environment variable consulted when no --config
// flag is given
const EnvConfigPath = "MOVENSEED_CONFIG"

// File is a loaded INI configuration file
type File struct {
	path string
	ini  *ini.File
}

// ResolvePath returns the config file to load: the flag value if set,
// otherwise $MOVENSEED_CONFIG. An empty result means no file.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(EnvConfigPath)
}

// Load reads an INI config file
func Load(path string) (*File, error) {
	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	return &File{path: path, ini: iniFile}, nil
}

func (f *File) Path() string {
	return f.path
}

// Apply overlays the keys present in the file onto o. Keys absent from the
// file leave o unchanged.
func (f *File) Apply(o Options) (Options, error) {
	var err error

	if f.ini.HasSection("filehash") {
		section := f.ini.Section("filehash")
		if section.HasKey("algorithm") {
			o.Algorithm = strings.TrimSpace(section.Key("algorithm").String())
		}
		if section.HasKey("chunk_size") {
			raw := section.Key("chunk_size").String()
			size, perr := humanize.ParseBytes(raw)
			if perr != nil {
				return o, fmt.Errorf("%s: [filehash] chunk_size: %w", f.path, perr)
			}
			o.ChunkSize = int(size)
		}
		if o.Hashes, err = f.boolKey(section, "skip", o.Hashes, true); err != nil {
			return o, err
		}
	}

	if f.ini.HasSection("filesize") {
		if o.Sizes, err = f.boolKey(f.ini.Section("filesize"), "skip", o.Sizes, true); err != nil {
			return o, err
		}
	}

	if f.ini.HasSection("link") {
		section := f.ini.Section("link")
		if section.HasKey("mode") {
			switch mode := strings.ToLower(strings.TrimSpace(section.Key("mode").String())); mode {
			case "hard":
				o.Hard = true
			case "symbolic", "symlink", "soft":
				o.Hard = false
			default:
				return o, fmt.Errorf("%s: [link] mode: unknown link mode %q", f.path, mode)
			}
		}
	}

	if f.ini.HasSection("manifest") {
		if o.MakeSubdirectory, err = f.boolKey(f.ini.Section("manifest"), "make_subdirectory", o.MakeSubdirectory, false); err != nil {
			return o, err
		}
	}

	if f.ini.HasSection("walk") {
		section := f.ini.Section("walk")
		if section.HasKey("exclude") {
			for _, pattern := range section.Key("exclude").Strings(",") {
				if pattern != "" {
					o.Excludes = append(o.Excludes, pattern)
				}
			}
		}
	}

	if f.ini.HasSection("output") {
		section := f.ini.Section("output")
		if o.Verbose, err = f.boolKey(section, "verbose", o.Verbose, false); err != nil {
			return o, err
		}
		if o.Quiet, err = f.boolKey(section, "quiet", o.Quiet, false); err != nil {
			return o, err
		}
	}

	return o, nil
}

// boolKey reads a boolean key, returning current when the key is absent.
// With negate set the stored value is inverted, for skip_* style keys.
func (f *File) boolKey(section *ini.Section, name string, current, negate bool) (bool, error) {
	if !section.HasKey(name) {
		return current, nil
	}
	v, err := section.Key(name).Bool()
	if err != nil {
		return current, fmt.Errorf("%s: [%s] %s: %w", f.path, section.Name(), name, err)
	}
	if negate {
		return !v, nil
	}
	return v, nil
}
