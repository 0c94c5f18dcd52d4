package filesystem

import "strings"

// Root is the canonical path of the root directory
const Root = "/"

// Normalize turns any string into a canonical absolute path: no empty
// segments, no "." or "..", no trailing slash. ".." above root is dropped.
// Relative input is treated as if it were rooted.
func Normalize(raw string) string {
	stack := make([]string, 0, strings.Count(raw, "/")+1)
	for _, seg := range strings.Split(raw, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}
	return Root + strings.Join(stack, "/")
}

// Resolve resolves input against cwd and returns the normalized result.
// Empty input and "." resolve to cwd itself.
func Resolve(cwd, input string) string {
	switch {
	case input == "" || input == ".":
		return Normalize(cwd)
	case strings.HasPrefix(input, "/"):
		return Normalize(input)
	default:
		return Normalize(cwd + "/" + input)
	}
}

// Segments returns the names along p, root first. Root has no segments.
func Segments(p string) []string {
	p = Normalize(p)
	if p == Root {
		return nil
	}
	return strings.Split(p[1:], "/")
}

// Split returns the parent directory and final name of p.
// Root yields ("/", "").
func Split(p string) (parent, name string) {
	p = Normalize(p)
	if p == Root {
		return Root, ""
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return Root, p[1:]
	}
	return p[:i], p[i+1:]
}

// Join joins a directory path and child name into a normalized path
func Join(dir, name string) string {
	return Normalize(dir + "/" + name)
}

// IsWithin reports whether p is ancestor itself or lies beneath it
func IsWithin(p, ancestor string) bool {
	p, ancestor = Normalize(p), Normalize(ancestor)
	if ancestor == Root || p == ancestor {
		return true
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// validName reports whether name can be stored as a single child entry
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}
