// Package testsupport provides shared helpers for package tests: isolated
// configurations and fake transcoder runners that fabricate output files
// instead of encoding video.
package testsupport
