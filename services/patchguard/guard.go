// Package patchguard authorizes structural patch paths against a configured
// allowlist of path prefixes. It is pure: no state, no side effects.
package patchguard

import (
	"strings"

	"github.com/upb/site-control-plane/models"
	"github.com/upb/site-control-plane/services"
)

// IsPathAllowed reports whether path falls under one of the allowlist
// prefixes. Paths may use "/" or "." as separators. Any ".." segment is
// rejected regardless of the allowlist.
func IsPathAllowed(path string, allowlist []string) bool {
	segments := models.SplitPath(path)
	if len(segments) == 0 {
		return false
	}
	for _, seg := range segments {
		if seg == ".." {
			return false
		}
	}

	normalized := strings.Join(segments, "/")
	for _, entry := range allowlist {
		prefix := strings.Join(models.SplitPath(entry), "/")
		if prefix == "" {
			continue
		}
		if normalized == prefix || strings.HasPrefix(normalized, prefix+"/") {
			return true
		}
	}
	return false
}

// ValidateOps checks every op against the allowlist and returns a validation
// error naming the first offending path. A nil return means all ops may be
// applied.
func ValidateOps(ops []models.PatchOp, allowlist []string) error {
	for _, op := range ops {
		if op.Op != "set" {
			return services.NewDomainError(services.ErrorTypeValidation,
				"unsupported patch op", nil).WithDetail("op", op.Op)
		}
		if !IsPathAllowed(op.Path, allowlist) {
			return services.NewDomainError(services.ErrorTypeValidation,
				"path not allowed", nil).WithDetail("path", op.Path)
		}
	}
	return nil
}
