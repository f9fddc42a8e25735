package exithandler

import (
	"os"
	"os/signal"
	"syscall"
)

// Init blocks until SIGINT or SIGTERM, then runs the cleanup callback.
func Init(cleanup func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	cleanup()
}
