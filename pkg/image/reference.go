package image

import (
	"strings"

	"github.com/combust-labs/darker/pkg/derrors"
)

// Reference is a parsed [registry/]repo[:tag][@digest] string.
type Reference struct {
	Registry   string
	Repository string
	Tag        string
	Digest     string // empty if not pinned
}

// ParseReference parses s per the rules in the registry client design:
// peel an "@digest" suffix, then a ":tag" suffix (only when the
// right-hand side contains no "/"), then resolve the registry from the
// first path segment.
func ParseReference(s string) (*Reference, error) {
	if s == "" {
		return nil, derrors.ErrInvalidImageRef
	}

	ref := &Reference{Tag: "latest"}

	withoutDigest := s
	if idx := strings.LastIndex(s, "@"); idx != -1 {
		ref.Digest = s[idx+1:]
		withoutDigest = s[:idx]
	}

	withoutTag := withoutDigest
	if idx := strings.LastIndex(withoutDigest, ":"); idx != -1 {
		rhs := withoutDigest[idx+1:]
		if !strings.Contains(rhs, "/") {
			ref.Tag = rhs
			withoutTag = withoutDigest[:idx]
		}
	}

	if withoutTag == "" {
		return nil, derrors.ErrInvalidImageRef
	}

	if strings.Contains(withoutTag, "/") {
		firstSlash := strings.Index(withoutTag, "/")
		first := withoutTag[:firstSlash]
		if strings.Contains(first, ".") || strings.Contains(first, ":") || first == "localhost" {
			ref.Registry = first
			ref.Repository = withoutTag[firstSlash+1:]
		} else {
			ref.Registry = "docker.io"
			ref.Repository = withoutTag
		}
	} else {
		ref.Registry = "docker.io"
		ref.Repository = "library/" + withoutTag
	}

	return ref, nil
}

// RepositoryWithRegistry returns "registry/repository".
func (r *Reference) RepositoryWithRegistry() string {
	return r.Registry + "/" + r.Repository
}

// FullName returns the canonical string form of the reference, such that
// ParseReference(r.FullName()) round-trips to an equal Reference.
func (r *Reference) FullName() string {
	name := r.RepositoryWithRegistry() + ":" + r.Tag
	if r.Digest != "" {
		name += "@" + r.Digest
	}
	return name
}

// RegistryURL returns the base URL to use for Distribution API calls.
func (r *Reference) RegistryURL() string {
	switch {
	case r.Registry == "docker.io":
		return "https://registry-1.docker.io"
	case strings.HasPrefix(r.Registry, "localhost"):
		return "http://" + r.Registry
	default:
		return "https://" + r.Registry
	}
}

// TagKey returns the "repo:tag" key used in the tag index.
func (r *Reference) TagKey() string {
	return r.Repository + ":" + r.Tag
}

// IsScratch reports whether the reference is the "scratch" sentinel.
func IsScratch(ref string) bool {
	return ref == "scratch"
}
