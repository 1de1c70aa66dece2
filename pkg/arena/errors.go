package arena

import "github.com/pkg/errors"

// ErrArenaExhausted is returned by AllocateChildren when the arena has no
// room left for more node records.
var ErrArenaExhausted = errors.New("arena: exhausted node capacity")

// ErrInvalidIndex names an out-of-range node index. Arena.Get does not
// check indices against Size and never returns it.
var ErrInvalidIndex = errors.New("arena: index out of range")
