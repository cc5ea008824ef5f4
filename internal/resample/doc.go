// Package resample performs the crop-and-resize step of region extraction.
//
// A region request is resolved against a native pyramid level as a padded,
// integer-aligned window plus a fractional crop box identifying the exact
// samples of interest inside that window. This package consumes the decoded
// window and the crop box and produces an image of exactly the requested
// output size.
//
// # Pipelines
//
// Two pipelines implement the same nominal contract but differ in rounding,
// and downstream consumers may depend on either behavior, so both are kept
// as named strategies:
//
//   - PipelineBox keeps the crop box continuous and performs a single
//     resample pass with the box as the source rectangle. Sub-pixel offsets
//     are honored exactly. Color-space normalization is not supported; a
//     request for it is downgraded with a warning.
//   - PipelineCrop floors the box's left/top and rounds its right/bottom to
//     integers, crops explicitly, optionally normalizes the cropped buffer
//     to sRGB, and then resizes to the target dimensions.
//
// # Kernels
//
// Interpolation is either nearest-neighbor or a Lanczos kernel with a
// support of 3 samples. The support radius is what the geometry layer uses
// to size the padded window, so the two must stay in agreement.
package resample
