//go:build !cgo

package trace

func openKuzu(string) (Store, error) {
	return nil, ErrKuzuUnavailable
}
