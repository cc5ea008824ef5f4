// Package slide provides continuous-resolution region extraction over
// discretely-leveled pyramidal images.
//
// A whole-slide image stores a fixed set of downsample levels yet must be
// queryable at any scaling factor. Slide reconciles the two: a region
// request at an arbitrary scaling is mapped onto the closest
// finer-or-equal native level, decoded with enough padding to feed the
// interpolation kernel at the borders, and resampled to exactly the
// requested output size.
//
// # Coordinate spaces
//
// Four coordinate spaces meet here: the request space (pixels at the
// requested scaling), the native-level space, the level-zero space the
// backend addresses reads in, and the cropped-buffer space of one decoded
// window. The coordinate mapper (planRegion) translates between all four
// and guarantees no out-of-bounds native read is ever attempted.
//
// # Lifetime
//
// A Slide owns its backend for its whole lifetime and must be closed
// exactly once; With wraps open/use/close so release is guaranteed on all
// exit paths. Views are cheap, stateless adapters over a Slide and can be
// created, shared for concurrent reads and discarded freely.
package slide
