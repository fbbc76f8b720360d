package vfs

import (
	"strings"
)

// Normalize turns a caller-supplied path into a canonical absolute catalog
// path.
//
// Rules, in order:
//  1. "" and "." resolve to workingDir.
//  2. "./x" resolves to workingDir + "/x".
//  3. "/x" is absolute under catalogRoot. Paths already under catalogRoot
//     are left as they are, so "/x" and "<root>/x" agree.
//  4. Anything else is relative to workingDir.
//  5. mountPrefix is stripped from the front, or from right after the
//     catalog root when rule 3 prefixed it. The mount point stands for the
//     catalog root, so what follows it is rooted again.
//  6. "." and ".." segments are resolved lexically, then trailing "/" and
//     "." characters are trimmed until neither remains.
//
// A result outside catalogRoot fails with InvalidPath. Normalizing a
// canonical path returns it unchanged.
func Normalize(raw, workingDir, mountPrefix, catalogRoot string) (string, error) {
	root := canonicalRoot(catalogRoot)
	mount := strings.TrimRight(mountPrefix, "/")

	var p string
	switch {
	case raw == "" || raw == ".":
		p = workingDir
	case strings.HasPrefix(raw, "./"):
		p = workingDir + "/" + raw[2:]
	case strings.HasPrefix(raw, "/"):
		p = rootUnder(raw, root)
	default:
		p = workingDir + "/" + raw
	}

	if mount != "" {
		if rest, ok := cutPathPrefix(p, mount); ok {
			p = rootUnder(rest, root)
		} else if root != "/" {
			if rest, ok := cutPathPrefix(p, root+mount); ok {
				p = rootUnder(rest, root)
			}
		}
	}

	resolved, ok := resolveDots(p)
	if !ok {
		return "", newError(InvalidPath, "normalize", raw, nil)
	}
	resolved = trimTrailing(resolved)

	if root != "/" && resolved != root && !strings.HasPrefix(resolved, root+"/") {
		return "", newError(InvalidPath, "normalize", raw, nil)
	}
	return resolved, nil
}

func canonicalRoot(root string) string {
	root = strings.TrimRight(root, "/")
	if root == "" {
		return "/"
	}
	if !strings.HasPrefix(root, "/") {
		root = "/" + root
	}
	return root
}

// rootUnder places an absolute path under root unless it already is.
func rootUnder(p, root string) string {
	if p == "" {
		return root
	}
	if root == "/" || p == root || strings.HasPrefix(p, root+"/") {
		return p
	}
	return root + p
}

// cutPathPrefix removes prefix from p when it ends on a segment boundary.
func cutPathPrefix(p, prefix string) (string, bool) {
	if p == prefix {
		return "", true
	}
	if strings.HasPrefix(p, prefix+"/") {
		return p[len(prefix):], true
	}
	return "", false
}

// resolveDots resolves "." and ".." segments of an absolute path. It fails
// when ".." climbs above "/".
func resolveDots(p string) (string, bool) {
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) == 0 {
				return "", false
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}
	return "/" + strings.Join(out, "/"), true
}

func trimTrailing(p string) string {
	trimmed := strings.TrimRight(p, "/.")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// parentOf returns the parent of an absolute path; "/" is its own parent.
func parentOf(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

// baseOf returns the last segment of a path.
func baseOf(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
