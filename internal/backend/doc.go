// Package backend defines the slide backend contract and its built-in
// implementations.
//
// A backend decodes one pyramidal image: it reports the discrete level
// dimensions and downsample factors, serves native pixel reads addressed by
// level-zero coordinates, and carries slide metadata (spacing, bounds,
// vendor, properties). The geometry layer above never touches files itself;
// everything it knows about a slide comes through the Backend interface.
//
// Backends form a closed set selected by name through Open. The built-in
// "store" backend reads a pyramid directory: a metadata.json index plus one
// image file per level, stored either as an ordinary PNG/JPEG/TIFF or as a
// zstd-compressed raw NRGBA plane.
//
// Level buffers decode lazily and are cached for the lifetime of the
// backend, so a backend is safe for concurrent region reads. Close releases
// the cache and must be called exactly once when the slide is done.
package backend
