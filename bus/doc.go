// Package bus is the in-process event hub that connects presenters to the
// data-access core.
//
// Events are plain names. A suffix scopes a name to one consumer so
// several views can ask for the same kind of data without seeing each
// other's replies:
//
//	uid := b.UID()
//	event := b.Subscribe("sections-loaded", onSections, uid) // "sections-loaded1"
//	api.Get(ctx, event, spec, nil)
//
// States are named values with a current reading. Setting a state also
// publishes it, and a state name can no longer be used with Publish.
//
// Payloads that report an error pass through the error hook before
// delivery. The default hook logs and suppresses the publication, so a
// failed reply reaches no subscriber unless a permissive hook is installed
// with SetOnError.
package bus
