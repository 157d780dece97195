// Package validate checks entities and trees against identity, shape,
// hierarchy and behavior rules.
//
// Validation never fails fast and never returns an error value: every
// problem becomes an Issue with a level, a category and a code from the
// ir error taxonomy. Errors block a mutation; warnings (missing label,
// unmet behavior prerequisite, inherited behavior overridden by an
// explicit one) never do.
package validate
