// Package output provides the destinations feedsieve writes rendered pages
// and reports to.
//
// A [Writer] receives the complete payload in one call. [StdoutWriter] sends
// it to a stream, [FileWriter] replaces a file, creating parent directories
// as needed.
package output
