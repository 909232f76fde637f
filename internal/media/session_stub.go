//go:build !linux

package media

// NewSession returns the no-op session on platforms without a native
// media session integration
func NewSession() (Session, error) {
	return NewNoOpSession(), nil
}
