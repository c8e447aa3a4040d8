// Package obpel keeps compiled business process definitions in memory and
// serves them to process instances.
//
// The model package holds the definition tree: scopes with their variables,
// partner links, correlation sets and handlers, for-each iteration and
// variable types. The root Service persists definitions through a pluggable
// store (memory, file system or BoltDB), caches the decoded trees and
// dehydrates the ones left idle:
//
//	srv, _ := obpel.New(ctx, obpel.WithConfig(cfg))
//	_ = srv.Register(ctx, process)
//	p, _ := srv.Definition(ctx, process.ID())
//	v, ok := p.Root().ResolveVariable("order")
//
// runtime/iteration drives the branches of a for-each activity.
package obpel
