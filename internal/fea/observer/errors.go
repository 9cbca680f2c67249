package observer

import "fmt"

var errNoBackend = fmt.Errorf("observer: no registered backend probed successfully")

func errUnregisteredBackend(kind BackendKind) error {
	return fmt.Errorf("observer: backend override %s is not registered", kind)
}
