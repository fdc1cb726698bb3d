// Package filter provides the selection-filter capability (C4): a
// stateless predicate bundle over a device handle, used both by the
// allocate() call site and as the global policy filter installed at init.
//
// Filters are plain functions: small constructors returning a Filter,
// composed with All. A filter that needs a device property (product type, SDK level,
// battery) takes a Properties source so it can be evaluated without the
// allocation core depending on a concrete test-device type.
package filter
