// Package buildsys implements a minimal task runner. Tasks are declared in Go or in a
// Starlark script and their commands are executed with mvdan.cc/sh, which keeps the
// commands portable across platforms.
package buildsys
