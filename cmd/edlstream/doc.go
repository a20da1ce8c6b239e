// Command edlstream is the CLI for the EDL assembly engine: it enqueues
// and runs builds, assembles per-decision playlists, exports flat files,
// and inspects the build queue.
package main
