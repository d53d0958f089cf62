// Package registry holds the declarative catalog of ERP tools.
//
// A Descriptor states everything needed to execute a tool: its entity (the
// cache tag), whether it reads or writes, the backend method and path, and
// its parameters. Binding validates caller arguments against the
// descriptor, folds aliases, applies defaults and distributes the values
// over path, query string, sqlfilters expression and JSON body.
//
// The Registry is built once at startup and is read-only afterwards.
package registry
