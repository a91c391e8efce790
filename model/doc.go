// Package model holds the typed schema of the G-Node repository objects.
//
// Every known Type has a Template listing its fields, its parent and child
// relations (each naming the Type at the other end) and, for plotable
// electrophysiology types, its data fields. Templates are built once at
// package init with the universal safety_level and date_created fields
// merged in; Lookup is a pure map read.
//
// Identifiers have the form [/category]/type/id and may arrive as absolute
// URLs. ParseID and OmitHost normalise them, BaseURL builds the request
// path used for writes.
package model
