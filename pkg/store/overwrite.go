package store

import (
	"context"
	"fmt"

	"github.com/objectfs/jailstore/pkg/errors"
	"github.com/objectfs/jailstore/pkg/types"
)

// Overwrite copies the tree under source's working directory into target's
// working directory. Existing target files with the same names are replaced;
// other target entries are left alone.
//
// Every entry Readdir lists must still exist when it is visited. An entry
// that vanishes in between breaks that assumption and yields a fatal
// INVARIANT error.
func Overwrite(ctx context.Context, source, target *Store) error {
	if err := target.Mkdir(ctx, ".", types.MkdirOptions{Recursive: true}); err != nil {
		return err
	}

	names, err := source.Readdir(ctx, ".", types.ReaddirOptions{})
	if err != nil {
		return err
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return errors.NewError(errors.ErrCodeUnknown, "overwrite cancelled").
				WithComponent(component).
				WithOperation("overwrite").
				WithCause(err)
		}

		stats, err := source.Stats(ctx, name)
		if errors.HasCode(err, errors.ErrCodePathNotFound) {
			return types.NewOpError(errors.ErrCodeInvariant, component, "overwrite", source.sc, source.Resolve(name),
				fmt.Sprintf("listed entry %q no longer exists", name)).
				WithCause(err).
				WithStack()
		}
		if err != nil {
			return err
		}

		if stats.IsDirectory() {
			if err := Overwrite(ctx, source.Child(name), target.Child(name)); err != nil {
				return err
			}
			continue
		}

		content, err := source.Read(ctx, name)
		if err != nil {
			return err
		}
		if err := target.Write(ctx, name, content, types.WriteOptions{}); err != nil {
			return err
		}
	}
	return nil
}
