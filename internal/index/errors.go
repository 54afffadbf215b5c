package index

import "errors"

// Failure taxonomy. These never stop indexing; they are returned from
// Problems and logged, and each one stays contained to its file.
var (
	// ErrParseFailure: the pass runtime reported errors, so the file
	// contributes no symbols until it parses again.
	ErrParseFailure = errors.New("parse failure")
	// ErrUnresolvedDependency: a Jac import points at a file the session
	// does not track. The edge is kept and contributes no symbols.
	ErrUnresolvedDependency = errors.New("unresolved dependency")
	// ErrMalformedDeclaration: a symbol arrived without a usable range and
	// was defaulted to its declaration line.
	ErrMalformedDeclaration = errors.New("malformed declaration")
)
