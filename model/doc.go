// Package model contains the static metadata executed by the kernel: the
// office with its teams, managed objects, governances and functions.
//
// An office is typically loaded from a YAML or TOML document, or built
// programmatically with NewOffice. Init resolves name references into
// indices into the flat tables held by the office.
package model
