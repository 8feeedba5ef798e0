// Package protocol enumerates wire-protocol versions of the remote procedures,
// and negotiates them with the server.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedProtocol is returned for a protocol version this client cannot speak.
var ErrUnsupportedProtocol = errors.New("unsupported protocol version")

// ProtocolVersion is a version of the protocol of versioned procedures.
//
// The zero value is not a valid version.
type ProtocolVersion int

const (
	V1 ProtocolVersion = iota + 1
	V2
	V3
)

// All returns all known versions, oldest first.
func All() []ProtocolVersion {
	return []ProtocolVersion{V1, V2, V3}
}

var tags = map[ProtocolVersion]string{
	V1: "v1",
	V2: "v2",
	V3: "v3",
}

// Valid reports whether v is a known version.
func (v ProtocolVersion) Valid() bool {
	_, ok := tags[v]
	return ok
}

// Tag returns the canonical tag, like "v2".
func (v ProtocolVersion) Tag() string {
	return tags[v]
}

func (v ProtocolVersion) String() string {
	if t, ok := tags[v]; ok {
		return t
	}
	return fmt.Sprintf("ProtocolVersion(%d)", int(v))
}

// VersionedProcedureName qualifies a procedure name with this version.
//
// V1 uses the base name as is. Later versions append ".<tag>".
//
//	V2.VersionedProcedureName("gds.arrow.write") // => "gds.arrow.write.v2"
func (v ProtocolVersion) VersionedProcedureName(base string) string {
	if v == V1 {
		return base
	}
	return base + "." + v.Tag()
}

// SupportsEndpoint reports whether name is a procedure name of this version.
//
// V1 accepts any name. Later versions accept only names ending with ".<tag>".
func (v ProtocolVersion) SupportsEndpoint(name string) bool {
	if v == V1 {
		return true
	}
	if !v.Valid() {
		return false
	}
	return strings.HasSuffix(name, "."+v.Tag())
}

// Parse converts a tag into ProtocolVersion.
//
// # Returns
//
// - ProtocolVersion
//
// - error: ErrUnsupportedProtocol if tag is unknown.
func Parse(tag string) (ProtocolVersion, error) {
	for v, t := range tags {
		if t == tag {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, tag)
}

// Latest returns the highest version in versions.
//
// It returns ErrUnsupportedProtocol if versions has no valid version.
func Latest(versions []ProtocolVersion) (ProtocolVersion, error) {
	var latest ProtocolVersion
	for _, v := range versions {
		if v.Valid() && latest < v {
			latest = v
		}
	}
	if !latest.Valid() {
		return 0, fmt.Errorf("%w: no known version in %v", ErrUnsupportedProtocol, versions)
	}
	return latest, nil
}
