package util

// Copyable values can be forked into a copy whose mutations the original does not see
type Copyable[A any] interface {
	Copy() A
}
