//go:build llama

package manager

// Link flags for the in-process runtime. libllama.so is expected next to the
// ragd binary in ./bin at link time and at run time ($ORIGIN rpath).
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
