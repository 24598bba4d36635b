// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// namePattern is the Composer naming rule shared by vendor and package names.
var namePattern = regexp.MustCompile(`^[a-z0-9]([_.-]?[a-z0-9]+)*$`)

// ValidationError reports input that was rejected before any network call.
// Its message is shown to the user as-is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// PackageIdentity names a package on the registry.
// Both parts are lowercase and match the Composer naming rule.
type PackageIdentity struct {
	Vendor  string
	Package string
}

// String returns the identity in "vendor/package" form.
func (p PackageIdentity) String() string {
	return p.Vendor + "/" + p.Package
}

// ResolveIdentity turns the raw command arguments into a PackageIdentity.
//
// vendor may be either a bare vendor name or "vendor/package". In the latter
// case pkg must be empty. Both parts are lowercased before validation.
func ResolveIdentity(vendor, pkg string) (PackageIdentity, error) {
	vendor = strings.ToLower(vendor)

	if strings.Contains(vendor, "/") {
		if pkg != "" {
			return PackageIdentity{}, validationErrorf(
				"Conflicting arguments: vendor/package format and separate package argument cannot be used together.")
		}
		vendor, pkg, _ = strings.Cut(vendor, "/")
	}

	if pkg == "" {
		return PackageIdentity{}, validationErrorf("Missing package name. Usage: check vendor/package or check vendor package")
	}
	pkg = strings.ToLower(pkg)

	if !namePattern.MatchString(vendor) {
		return PackageIdentity{}, validationErrorf("Invalid vendor name: %s", vendor)
	}
	if !namePattern.MatchString(pkg) {
		return PackageIdentity{}, validationErrorf("Invalid package name: %s", pkg)
	}

	return PackageIdentity{Vendor: vendor, Package: pkg}, nil
}
