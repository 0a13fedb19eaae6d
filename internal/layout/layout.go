package layout

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrEmptyWorkingDir = errors.New("layout: working directory is empty")
	ErrNoParent        = errors.New("layout: working directory has no parent")
	ErrInvalidOffsets  = errors.New("layout: invalid offsets")
)

// Offsets are the fixed relative locations of the generators and their inputs.
// Segment lists are joined with the active Style, so they carry no separators.
type Offsets struct {
	// NetworkGenDir is relative to the parent directory.
	NetworkGenDir []string
	// CarConfig is relative to NetworkGenDir.
	CarConfig []string
	// SensorGenDir is relative to the parent directory.
	SensorGenDir []string
	// LocalConfig is a file name inside the working directory.
	LocalConfig string
}

func DefaultOffsets() Offsets {
	return Offsets{
		NetworkGenDir: []string{"gophercan-lib", "network_autogen"},
		CarConfig:     []string{"configs", "go4-24e.yaml"},
		SensorGenDir:  []string{"Gopher_Sense"},
		LocalConfig:   "bms.yaml",
	}
}

// SplitOffset turns a slash separated relative offset into segments.
func SplitOffset(raw string) []string {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/")
	out := make([]string, 0, 4)
	for _, seg := range strings.Split(raw, "/") {
		if seg = strings.TrimSpace(seg); seg != "" && seg != "." {
			out = append(out, seg)
		}
	}
	return out
}

func (o Offsets) Validate() error {
	if len(o.NetworkGenDir) == 0 {
		return fmt.Errorf("%w: network generator dir is empty", ErrInvalidOffsets)
	}
	if len(o.CarConfig) == 0 {
		return fmt.Errorf("%w: car config is empty", ErrInvalidOffsets)
	}
	if len(o.SensorGenDir) == 0 {
		return fmt.Errorf("%w: sensor generator dir is empty", ErrInvalidOffsets)
	}
	name := strings.TrimSpace(o.LocalConfig)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: local config must be a bare file name, got %q", ErrInvalidOffsets, o.LocalConfig)
	}
	for _, segs := range [][]string{o.NetworkGenDir, o.CarConfig, o.SensorGenDir} {
		for _, seg := range segs {
			if seg == ".." || strings.ContainsAny(seg, `/\`) {
				return fmt.Errorf("%w: segment %q", ErrInvalidOffsets, seg)
			}
		}
	}
	return nil
}

// Layout is the set of paths derived from one working directory.
type Layout struct {
	Style           Style  `json:"style"`
	WorkingDir      string `json:"working_dir"`
	ProjectName     string `json:"project_name"`
	ParentDir       string `json:"parent_dir"`
	NetworkGenDir   string `json:"network_gen_dir"`
	CarConfigPath   string `json:"car_config_path"`
	SensorGenDir    string `json:"sensor_gen_dir"`
	LocalConfigPath string `json:"local_config_path"`
}

// Resolve derives the layout from workingDir. Nothing is checked on disk.
func Resolve(workingDir string, style Style, offsets Offsets) (Layout, error) {
	if strings.TrimSpace(workingDir) == "" {
		return Layout{}, ErrEmptyWorkingDir
	}
	if err := offsets.Validate(); err != nil {
		return Layout{}, err
	}

	wd := style.Clean(workingDir)
	parent := style.Dir(wd)
	if parent == wd || parent == "." {
		return Layout{}, fmt.Errorf("%w: %s", ErrNoParent, wd)
	}

	networkDir := style.Join(append([]string{parent}, offsets.NetworkGenDir...)...)
	return Layout{
		Style:           style,
		WorkingDir:      wd,
		ProjectName:     style.Base(wd),
		ParentDir:       parent,
		NetworkGenDir:   networkDir,
		CarConfigPath:   style.Join(append([]string{networkDir}, offsets.CarConfig...)...),
		SensorGenDir:    style.Join(append([]string{parent}, offsets.SensorGenDir...)...),
		LocalConfigPath: style.Join(wd, offsets.LocalConfig),
	}, nil
}

// ResolveCurrent resolves from the process working directory.
func ResolveCurrent(style Style, offsets Offsets) (Layout, error) {
	wd, err := os.Getwd()
	if err != nil {
		return Layout{}, fmt.Errorf("layout: getwd: %w", err)
	}
	return Resolve(wd, style, offsets)
}
