// Package adapter translates between the repository's wire format and the
// application's model.Object.
//
// AdaptFromResource turns a network.Result into typed objects, keeping only
// what the type's template declares. AdaptFromApplication and AdaptFromACL
// go the other way and build write requests. All functions are pure.
package adapter
