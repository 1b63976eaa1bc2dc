//go:build !gocv

package cvbackend

import (
	"context"
	"errors"

	"mold-measure/internal/vision"
)

var errNotBuilt = errors.New("built without the gocv tag")

func init() {
	vision.Register(Name, func(ctx context.Context) (vision.Backend, error) {
		return nil, errNotBuilt
	})
}
