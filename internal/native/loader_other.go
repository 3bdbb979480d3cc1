//go:build (!darwin && !freebsd && !linux && !windows) || android

package native

const supported = false

type systemLoader struct{}

func (systemLoader) Load(string) (Module, error) {
	return nil, ErrUnsupportedPlatform
}
