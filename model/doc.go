// Package model contains the compiled, in-memory representation of business
// process definitions: the scope tree with its declarations and handlers,
// iteration constructs, variable types and the durable form stores use to
// persist and reload a definition.
//
// A definition is built bottom-up by the compiler, sealed, and then shared
// read-only by every process instance. Visibility queries such as
// Scope.ResolveVariable walk the enclosing scopes and never lock. The only
// mutation after sealing is Dehydrate, which releases a scope subtree while a
// definition is idle; the definition cache reloads it from the durable form.
package model
