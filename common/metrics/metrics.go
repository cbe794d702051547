package metrics

import (
	"net/http"

	"github.com/arl/statsviz"
)

// Serve exposes the statsviz runtime dashboard under /debug/statsviz/.
func Serve(addr string) error {
	mux := http.NewServeMux()
	if err := statsviz.Register(mux); err != nil {
		return err
	}
	return http.ListenAndServe(addr, mux)
}
