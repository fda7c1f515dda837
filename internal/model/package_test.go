package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvedPackageEntryUnion(t *testing.T) {
	pkg := Package{Name: "python", Version: "3.11.4", InstallPath: "/opt/pkgs/python/3.11.4", Tools: []string{"python", "pip"}}
	variant := PackageVariant{Parent: pkg, Index: 1, Subpath: "cp311-linux"}

	entries := []ResolvedPackageEntry{pkg, variant}

	// Downstream code switches on the concrete type.
	var kinds []string
	for _, e := range entries {
		switch e.(type) {
		case Package:
			kinds = append(kinds, "package")
		case PackageVariant:
			kinds = append(kinds, "variant")
		default:
			t.Fatalf("unexpected entry type %T", e)
		}
	}
	assert.Equal(t, []string{"package", "variant"}, kinds)

	assert.Equal(t, "/opt/pkgs/python/3.11.4", pkg.InstallRoot())
	assert.Equal(t, "/opt/pkgs/python/3.11.4/cp311-linux", variant.InstallRoot())
	assert.Equal(t, "python", variant.Definition().Name)
}

func TestContextClone(t *testing.T) {
	set, err := ParseRequirementSet([]string{"python-3.11"})
	require.NoError(t, err)

	orig := Context{
		ID:           "ctx-1",
		Requirements: set,
		Status:       StatusResolved,
		Packages:     []ResolvedPackageEntry{Package{Name: "python", Version: "3.11.4", Tools: []string{"python"}}},
		Env:          map[string]string{"PATH": "/opt/pkgs/python/3.11.4/bin"},
	}

	clone := orig.Clone()
	clone.Env["PATH"] = "mutated"
	clone.Requirements[0].Name = "mutated"

	assert.Equal(t, "/opt/pkgs/python/3.11.4/bin", orig.Env["PATH"])
	assert.Equal(t, "python", orig.Requirements[0].Name)
}

func TestContextTools(t *testing.T) {
	c := Context{
		Packages: []ResolvedPackageEntry{
			Package{Name: "python", Tools: []string{"python", "pip"}},
			PackageVariant{Parent: Package{Name: "maya", Tools: []string{"maya"}}, Index: 0},
		},
	}
	assert.Equal(t, []string{"python", "pip", "maya"}, c.Tools())
}

func TestErrorKindOf(t *testing.T) {
	err := Errf(KindNotFound, "context %s not found", "abc")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindNotReady))

	wrapped := fmt.Errorf("store: %w", err)
	assert.Equal(t, KindNotFound, KindOf(wrapped))

	// Untyped errors never leak a generic kind.
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("boom")))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestErrorWithDetail(t *testing.T) {
	err := Errf(KindValidation, "bad requirement").WithDetail("requirement", "x y z")
	assert.Equal(t, "x y z", err.Details["requirement"])
	assert.Contains(t, err.Error(), "bad requirement")
}
