package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServeReportsListenerError(t *testing.T) {
	errs := Serve("127.0.0.1:notaport")

	select {
	case err := <-errs:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener error was not reported")
	}
}
