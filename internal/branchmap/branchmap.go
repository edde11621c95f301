// Package branchmap derives the dist-git branch a rebase or backport should
// target from a ticket's fix-version list, as a pure function with no I/O.
package branchmap

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"jotnar/internal/schema"
)

// fixVersionRegex parses "rhel-9.4.0", "rhel-9.4.z", "rhel-10.1" into
// (major, minor, zstream-suffix).
var fixVersionRegex = regexp.MustCompile(`^rhel-(\d+)\.(\d+)(?:\.(0|z))?$`)

type parsedVersion struct {
	major     int
	minor     int
	isZStream bool
}

func parseFixVersion(v string) (parsedVersion, error) {
	m := fixVersionRegex.FindStringSubmatch(v)
	if m == nil {
		return parsedVersion{}, fmt.Errorf("fix version %q does not match rhel-N.M(.0|.z)?", v)
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return parsedVersion{}, fmt.Errorf("fix version %q: bad major: %w", v, err)
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return parsedVersion{}, fmt.Errorf("fix version %q: bad minor: %w", v, err)
	}
	return parsedVersion{major: major, minor: minor, isZStream: m[3] == "z"}, nil
}

// highestFixVersion picks the newest (major, minor) entry from a ticket's
// fix-version list, preferring a z-stream entry at the same (major, minor)
// over a non-z-stream one, since z-stream is the more specific target.
func highestFixVersion(versions []string) (parsedVersion, error) {
	if len(versions) == 0 {
		return parsedVersion{}, fmt.Errorf("no fix versions supplied")
	}
	parsed := make([]parsedVersion, 0, len(versions))
	var firstErr error
	for _, v := range versions {
		p, err := parseFixVersion(v)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		parsed = append(parsed, p)
	}
	if len(parsed) == 0 {
		return parsedVersion{}, firstErr
	}
	sort.Slice(parsed, func(i, j int) bool {
		if parsed[i].major != parsed[j].major {
			return parsed[i].major > parsed[j].major
		}
		if parsed[i].minor != parsed[j].minor {
			return parsed[i].minor > parsed[j].minor
		}
		return parsed[i].isZStream && !parsed[j].isZStream
	})
	return parsed[0], nil
}

// DetermineTargetBranch implements the branch-mapping rules: parse the
// highest fix version, then decide between the public CentOS Stream branch,
// the public RHEL z-stream branch, and an internal-only branch reserved for
// CVEs that need a fix landed before the public stream picks it up.
//
// RHEL 10 and later publish their main development stream as CentOS
// Stream (branch "cNs"); RHEL 9 and earlier use "rhel-N.M" branches
// directly, so the ".0" z-stream-origin suffix is only meaningful below
// RHEL 10 and is omitted for N >= 10.
func DetermineTargetBranch(in schema.TargetBranchInput) (schema.TargetBranchResult, error) {
	v, err := highestFixVersion(in.FixVersions)
	if err != nil {
		return schema.TargetBranchResult{}, err
	}

	if in.CVENeedsInternalFix && in.InternalBranchExists {
		branch := fmt.Sprintf("internal-rhel-%d.%d", v.major, v.minor)
		if v.isZStream {
			branch += ".z"
		}
		return schema.TargetBranchResult{Branch: branch, IsZStream: v.isZStream, Internal: true}, nil
	}

	if v.major >= 10 {
		return schema.TargetBranchResult{
			Branch:    fmt.Sprintf("c%ds", v.major),
			IsZStream: v.isZStream,
		}, nil
	}

	if v.isZStream {
		return schema.TargetBranchResult{
			Branch:    fmt.Sprintf("rhel-%d.%d.z", v.major, v.minor),
			IsZStream: true,
		}, nil
	}

	return schema.TargetBranchResult{
		Branch: fmt.Sprintf("rhel-%d.%d.0", v.major, v.minor),
	}, nil
}
