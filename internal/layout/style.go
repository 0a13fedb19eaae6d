package layout

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Style selects the path flavor used to join and split layout paths.
type Style string

const (
	StyleNative  Style = "native"
	StylePosix   Style = "posix"
	StyleWindows Style = "windows"
)

func ParseStyle(raw string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StyleNative:
		return StyleNative, nil
	case StylePosix:
		return StylePosix, nil
	case StyleWindows:
		return StyleWindows, nil
	default:
		return "", fmt.Errorf("layout: unknown path style %q", raw)
	}
}

func (s Style) Join(elem ...string) string {
	switch s {
	case StylePosix:
		return path.Join(elem...)
	case StyleWindows:
		return winClean(strings.Join(nonEmpty(elem), `\`))
	default:
		return filepath.Join(elem...)
	}
}

func (s Style) Dir(p string) string {
	switch s {
	case StylePosix:
		return path.Dir(p)
	case StyleWindows:
		return winDir(p)
	default:
		return filepath.Dir(p)
	}
}

func (s Style) Base(p string) string {
	switch s {
	case StylePosix:
		return path.Base(p)
	case StyleWindows:
		return winBase(p)
	default:
		return filepath.Base(p)
	}
}

func (s Style) Clean(p string) string {
	switch s {
	case StylePosix:
		return path.Clean(p)
	case StyleWindows:
		return winClean(p)
	default:
		return filepath.Clean(p)
	}
}

// Windows flavor: drive-letter volumes and backslash separators only.
// UNC shares resolve as plain rooted paths.

func winVolume(p string) string {
	if len(p) >= 2 && p[1] == ':' {
		c := p[0] | 0x20
		if c >= 'a' && c <= 'z' {
			return p[:2]
		}
	}
	return ""
}

func winClean(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)
	vol := winVolume(p)
	rest := p[len(vol):]
	rooted := strings.HasPrefix(rest, `\`)

	parts := make([]string, 0, 8)
	for _, part := range strings.Split(rest, `\`) {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(parts) > 0 && parts[len(parts)-1] != ".." {
				parts = parts[:len(parts)-1]
				continue
			}
			if rooted {
				continue
			}
		}
		parts = append(parts, part)
	}

	out := strings.Join(parts, `\`)
	if rooted {
		out = `\` + out
	}
	if out == "" && vol == "" {
		return "."
	}
	return vol + out
}

func winDir(p string) string {
	p = winClean(p)
	vol := winVolume(p)
	rest := p[len(vol):]
	i := strings.LastIndex(rest, `\`)
	if i < 0 {
		if vol != "" {
			return vol + "."
		}
		return "."
	}
	dir := rest[:i]
	if dir == "" {
		dir = `\`
	}
	return vol + dir
}

func winBase(p string) string {
	p = winClean(p)
	rest := p[len(winVolume(p)):]
	if rest == `\` {
		return `\`
	}
	if i := strings.LastIndex(rest, `\`); i >= 0 {
		return rest[i+1:]
	}
	if rest == "" {
		return "."
	}
	return rest
}

func nonEmpty(elem []string) []string {
	out := make([]string, 0, len(elem))
	for _, e := range elem {
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
