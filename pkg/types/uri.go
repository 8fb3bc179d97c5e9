package types

import (
	"strings"
)

// Scheme identifies the origin of a URI.
type Scheme string

const (
	SchemeLocal  Scheme = "local"
	SchemeObject Scheme = "object"
)

// URI is an opaque, origin-qualified name for a filesystem path or an
// object-store key. Local URIs are absolute POSIX paths ("/a/b/c");
// object URIs are "scheme://bucket/key" (e.g. "s3://my-bucket/logs/2026").
// A URI's canonical form never carries a trailing slash except at the
// scheme root.
type URI string

// Scheme reports which namespace this URI belongs to.
func (u URI) Scheme() Scheme {
	if idx := strings.Index(string(u), "://"); idx >= 0 {
		return SchemeObject
	}
	return SchemeLocal
}

// Canonical returns u with a trailing slash stripped, unless u is a
// scheme root ("/" for local, "scheme://bucket" for object).
func (u URI) Canonical() URI {
	s := string(u)
	if u.Scheme() == SchemeObject {
		// scheme://bucket[/key...]
		idx := strings.Index(s, "://")
		root := s[:idx+3]
		rest := s[idx+3:]
		rest = strings.TrimRight(rest, "/")
		if rest == "" {
			return URI(root + strings.TrimSuffix(rest, "/"))
		}
		return URI(root + rest)
	}
	if s == "/" {
		return URI(s)
	}
	return URI(strings.TrimRight(s, "/"))
}

// IsRoot reports whether u is the root of its scheme: "/" for local
// URIs, or "scheme://bucket" (no key component) for object URIs.
func (u URI) IsRoot() bool {
	c := u.Canonical()
	if c.Scheme() == SchemeObject {
		s := string(c)
		idx := strings.Index(s, "://")
		rest := s[idx+3:]
		return !strings.Contains(rest, "/")
	}
	return string(c) == "/"
}

// Parent returns the parent of u. Parent is total except at the scheme
// root, where ok is false.
func (u URI) Parent() (parent URI, ok bool) {
	c := u.Canonical()
	if c.IsRoot() {
		return "", false
	}
	s := string(c)
	if c.Scheme() == SchemeObject {
		idx := strings.Index(s, "://")
		root := s[:idx+3]
		rest := s[idx+3:]
		slash := strings.LastIndex(rest, "/")
		if slash < 0 {
			return URI(root + strings.SplitN(rest, "/", 2)[0]), true
		}
		bucket := strings.SplitN(rest, "/", 2)[0]
		key := rest[len(bucket):]
		lastSlash := strings.LastIndex(key, "/")
		if lastSlash <= 0 {
			return URI(root + bucket), true
		}
		return URI(root + bucket + key[:lastSlash]), true
	}
	lastSlash := strings.LastIndex(s, "/")
	if lastSlash <= 0 {
		return "/", true
	}
	return URI(s[:lastSlash]), true
}

// Name returns the final path component of u ("" for the scheme root).
func (u URI) Name() string {
	c := u.Canonical()
	if c.IsRoot() {
		return ""
	}
	s := string(c)
	idx := strings.LastIndex(s, "/")
	return s[idx+1:]
}

// IsAncestorOf reports whether u is equal to other or a strict,
// "/"-boundary prefix of other.
func (u URI) IsAncestorOf(other URI) bool {
	a, b := string(u.Canonical()), string(other.Canonical())
	if a == b {
		return true
	}
	if a == "/" {
		return strings.HasPrefix(b, "/")
	}
	return strings.HasPrefix(b, a+"/")
}

// Depth returns the number of path components below the root. Used to
// compute a node's depth relative to an arbitrary ancestor.
func (u URI) Depth() int {
	c := u.Canonical()
	if c.IsRoot() {
		return 0
	}
	s := string(c)
	if c.Scheme() == SchemeObject {
		idx := strings.Index(s, "://")
		rest := s[idx+3:]
		parts := strings.Split(rest, "/")
		return len(parts) - 1
	}
	return strings.Count(s, "/")
}

// Suffix returns the path of other relative to ancestor u, using "."
// for other == u and no leading slash otherwise. IsAncestorOf(u,
// other) must hold.
func (u URI) Suffix(other URI) string {
	a, b := string(u.Canonical()), string(other.Canonical())
	if a == b {
		return "."
	}
	if a == "/" {
		return strings.TrimPrefix(b, "/")
	}
	return strings.TrimPrefix(b, a+"/")
}

// Join appends a relative suffix ("." returns u unchanged) to u.
func (u URI) Join(suffix string) URI {
	if suffix == "" || suffix == "." {
		return u.Canonical()
	}
	c := u.Canonical()
	if c.Scheme() == SchemeObject {
		return URI(string(c) + "/" + suffix)
	}
	if string(c) == "/" {
		return URI("/" + suffix)
	}
	return URI(string(c) + "/" + suffix)
}
