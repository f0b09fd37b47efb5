// Package namegen generates human-friendly container names in the
// adjective_surname pattern, and validates hostnames derived from them.
package namegen

import (
	"regexp"
	"strings"

	"github.com/docker/docker/pkg/namesgenerator"
)

var hostnameRE = regexp.MustCompile(`^(([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9\-]*[a-zA-Z0-9])\.)*([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9\-]*[A-Za-z0-9])$`)

// RandomContainerName returns a new random "adjective_surname" name.
func RandomContainerName() string {
	return namesgenerator.GetRandomName(0)
}

// RandomHostname returns a random name usable as a hostname (hyphenated,
// since underscores are not valid in DNS labels).
func RandomHostname() string {
	return strings.ReplaceAll(namesgenerator.GetRandomName(0), "_", "-")
}

// IsValidHostname reports whether host is a syntactically valid hostname.
func IsValidHostname(host string) bool {
	return hostnameRE.MatchString(strings.TrimSpace(host))
}
