package registry

import "github.com/google/uuid"

func newTestUUID() uuid.UUID {
	return uuid.MustParse("33333333-3333-3333-3333-333333333333")
}
