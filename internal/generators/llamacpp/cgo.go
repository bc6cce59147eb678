//go:build llama

package llamacpp

// cgo link directives for the in-process generator. An rpath of $ORIGIN lets
// the runtime loader find libllama.so next to the built binary, and the -L
// path lets the linker find it at build time under ./bin.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../../bin -lllama
*/
import "C"
