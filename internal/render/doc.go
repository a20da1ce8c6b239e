// Package render produces a single flat re-encoded file from an edit
// decision list. It is the export path: no segmentation, no caching, one
// output file per request.
package render
