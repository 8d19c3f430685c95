// Package errcode defines the process exit codes. Codes other than
// GenericErr are bit flags and may be combined.
package errcode

const (
	GenericErr  = 1
	CatalogErr  = 1 << 1
	OperatorErr = 1 << 2
)
