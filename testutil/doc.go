// Package testutil holds test doubles and fixtures shared across packages.
//
// RepositoryServer is an httptest server that behaves like the repository
// REST API: it serves registered objects with ETags, answers matching
// If-None-Match headers with 304, accepts POST and DELETE, and records
// every request. The fixture builders (Segment, AnalogSignal, Section)
// produce objects in the server's wire shape with permalinks under Host.
//
// FakeNATS routes NATS subjects in memory for transport tests.
package testutil
