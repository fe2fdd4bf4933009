package patchguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/site-control-plane/models"
	"github.com/upb/site-control-plane/services"
)

func TestIsPathAllowed(t *testing.T) {
	allowlist := []string{"theme", "layout/header"}

	tests := []struct {
		name    string
		path    string
		allowed bool
	}{
		{"exact prefix", "theme", true},
		{"nested under prefix", "theme/color", true},
		{"dotted separator", "theme.color.primary", true},
		{"deeper allowlist entry", "layout/header/logo", true},
		{"sibling of allowlist entry", "layout/footer", false},
		{"prefix is not a segment boundary", "themes/color", false},
		{"outside allowlist", "secrets/api_key", false},
		{"traversal", "../secrets", false},
		{"traversal inside allowed prefix", "theme/../secrets", false},
		{"empty path", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, IsPathAllowed(tt.path, allowlist))
		})
	}
}

func TestValidateOpsNamesOffendingPath(t *testing.T) {
	ops := []models.PatchOp{
		{Op: "set", Path: "theme/color", Value: "red"},
		{Op: "set", Path: "secrets/token", Value: "x"},
		{Op: "set", Path: "nav/items", Value: "y"},
	}

	err := ValidateOps(ops, []string{"theme"})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	assert.Equal(t, "secrets/token", services.GetErrorDetails(err)["path"])
}

func TestValidateOpsRejectsUnsupportedOp(t *testing.T) {
	err := ValidateOps([]models.PatchOp{{Op: "remove", Path: "theme/color"}}, []string{"theme"})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	assert.Equal(t, "remove", services.GetErrorDetails(err)["op"])
}

func TestValidateOpsAllAllowed(t *testing.T) {
	ops := []models.PatchOp{
		{Op: "set", Path: "theme/color", Value: "red"},
		{Op: "set", Path: "theme.font", Value: "serif"},
	}
	assert.NoError(t, ValidateOps(ops, []string{"theme"}))
}
