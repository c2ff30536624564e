// Package inheritance loads structured content units from YAML files and
// resolves units that inherit fields from a base unit.
//
// A unit declares its base with a source (or inherit) mapping naming a file
// and a ref. Resolution copies every field of the resolved base that the
// unit does not set itself; replacement maps are merged key by key with the
// unit's own entries winning. Files are parsed at most once per Cache.
package inheritance
