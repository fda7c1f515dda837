package model

import "path/filepath"

// Package is one fully resolved package as reported by the solver.
type Package struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	InstallPath string   `json:"install_path,omitempty"`
	Tools       []string `json:"tools,omitempty"`
	Requires    []string `json:"requires,omitempty"`
}

// PackageVariant is a build variant of a parent package: same definition,
// different payload under a variant subpath.
type PackageVariant struct {
	Parent  Package `json:"parent"`
	Index   int     `json:"index"`
	Subpath string  `json:"subpath"`
}

// ResolvedPackageEntry is either a Package or a PackageVariant. Downstream
// code switches on the concrete type instead of probing fields; the
// unexported method seals the union.
type ResolvedPackageEntry interface {
	resolvedPackageEntry()

	// Definition returns the underlying package definition.
	Definition() Package
	// InstallRoot returns the directory the payload lives under, including
	// the variant subpath when applicable.
	InstallRoot() string
}

func (Package) resolvedPackageEntry()        {}
func (PackageVariant) resolvedPackageEntry() {}

func (p Package) Definition() Package { return p }
func (p Package) InstallRoot() string { return p.InstallPath }

func (v PackageVariant) Definition() Package { return v.Parent }
func (v PackageVariant) InstallRoot() string {
	if v.Subpath == "" {
		return v.Parent.InstallPath
	}
	return filepath.Join(v.Parent.InstallPath, v.Subpath)
}
