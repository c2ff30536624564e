// Package confnode implements the validating attribute store that every
// configuration and content object in docweave is built from.
//
// A Node holds an ordered set of fields described by a Schema. Each Field may
// carry a setter that validates or transforms assigned values, a getter that
// computes a value on read, and a list of other fields its setter reads so
// that ingestion can assign them first. Names starting with an underscore are
// private bookkeeping and bypass the schema entirely.
//
// Nested mappings are never stored raw: they are wrapped into child Nodes that
// share the root of the Node they were assigned to.
package confnode
