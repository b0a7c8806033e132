// Package convert turns PDF byte sequences into single composite images by
// orchestrating two external command-line tools: a rasterizer (pdftoppm)
// that renders one image per page, and a compositor (ImageMagick convert)
// that stacks the pages into one vertical, zero-gap image.
//
// Every conversion runs in a uniquely named working sub-directory, so
// concurrent conversions never share a path. Temporary files (the source
// PDF, the per-page directory, and the composite) are removed on both
// success and failure paths; cleanup failures are logged, never raised.
//
// Page ordering relies on lexicographic sorting of the rasterizer's output
// filenames, which pdftoppm zero-pads to the width of the page count.
package convert
