package resolve

import (
	"context"
	"fmt"
	"sync"

	"github.com/jfrog/gofrog/parallel"
)

// calcChecksums fills the checksums of every node whose recipe has a checksum source, using a bounded pool.
func (r *Resolver) calcChecksums(ctx context.Context, g *Graph) error {
	runner := parallel.NewBounedRunner(r.threads, false)
	var firstErr error
	var errLock sync.Mutex
	onError := func(err error) {
		errLock.Lock()
		defer errLock.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}
	go func() {
		defer runner.Done()
		for _, node := range g.Nodes {
			if !node.Recipe.HasChecksumSource() {
				r.logger.Debug(fmt.Sprintf("Nothing to checksum for %s", node.Ref.String()))
				continue
			}
			node := node
			_, err := runner.AddTaskWithError(func(int) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				checksums, err := node.Recipe.CalcChecksums()
				if err != nil {
					return fmt.Errorf("failed to calculate checksums of %s: %w", node.Ref.String(), err)
				}
				node.Checksums = checksums
				return nil
			}, onError)
			if err != nil {
				onError(err)
				return
			}
		}
	}()
	runner.Run()
	if firstErr == nil {
		firstErr = ctx.Err()
	}
	return firstErr
}
