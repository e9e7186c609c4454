package poller

import (
	"context"

	"github.com/alitto/pond/v2"
)

// Pair is the combined result of two joined fetches.
type Pair[A, B any] struct {
	First  *A
	Second *B
}

// Join runs fa and fb in parallel on pool and resolves once both complete.
// If either fails the joined fetch fails with that error and neither half
// is returned, so a poller keeps the previous complete pair.
//
// pool must not be the pool the joined fetch itself runs on, or a saturated
// pool can deadlock waiting on its own sub-tasks.
func Join[A, B any](pool pond.Pool, fa FetchFunc[A], fb FetchFunc[B]) FetchFunc[Pair[A, B]] {
	return func(ctx context.Context) (*Pair[A, B], error) {
		var out Pair[A, B]

		group := pool.NewGroupContext(ctx)
		groupCtx := group.Context()

		group.SubmitErr(
			func() error {
				v, err := fa(groupCtx)
				if err != nil {
					return err
				}
				out.First = v
				return nil
			},
			func() error {
				v, err := fb(groupCtx)
				if err != nil {
					return err
				}
				out.Second = v
				return nil
			},
		)

		if err := group.Wait(); err != nil {
			return nil, err
		}
		return &out, nil
	}
}
