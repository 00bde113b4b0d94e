//go:build !cgo

package checkpoint

import "errors"

func openKuzu(string) (Store, error) {
	return nil, errors.New("checkpoint: the kuzu backend requires a cgo build")
}
