package fbnet

import (
	"sync"

	"github.com/fbnet-go/fbnet/errors"
)

var (
	libMu    sync.Mutex
	libCount int
)

// Init mirrors the original library's platform bootstrap call (Winsock
// startup on Windows, a no-op on Unix). The Unix/Go target needs no actual
// platform setup, but callers migrating code that calls Init/Shutdown in
// pairs keep that lifecycle; reference-counted so nested Init/Shutdown
// pairs from independent subsystems don't fight over a single flag.
func Init() error {
	libMu.Lock()
	defer libMu.Unlock()
	libCount++
	return nil
}

// Shutdown reverses a prior Init. Calling it more times than Init was
// called is a Logic error.
func Shutdown() error {
	libMu.Lock()
	defer libMu.Unlock()
	if libCount <= 0 {
		return errors.New(errors.Logic, "fbnet: Shutdown called without a matching Init")
	}
	libCount--
	return nil
}
