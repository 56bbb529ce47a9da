// Package ordering assigns sparse integer ranks to tasks within a
// column. Ranks are spaced rankGap apart so that inserting between two
// siblings rarely forces a renumbering of the column.
package ordering

import "errors"

const rankGap = 1000

// ErrConflict is returned by an InsertFunc when the candidate rank is
// already taken inside the same (project, column) pair, and by Assign
// when a retry hits a second collision.
var ErrConflict = errors.New("rank conflict")

// NextRank computes the rank for a task appended to the end of a
// column. existingMax is nil when the column is empty.
func NextRank(existingMax *int64) int64 {
	if existingMax == nil {
		return rankGap
	}
	return *existingMax + rankGap
}

// MaxRankFunc returns the current maximum rank in the target column,
// or nil when the column holds no tasks.
type MaxRankFunc func() (*int64, error)

// InsertFunc attempts to persist a task at the given rank. It must
// return ErrConflict (possibly wrapped) on a uniqueness violation and
// pass every other storage error through.
type InsertFunc func(rank int64) error

// Assign picks the next rank and performs the insert, retrying exactly
// once when a concurrent creator raced to the same rank. A second
// collision is surfaced as ErrConflict: callers must not loop.
func Assign(queryMax MaxRankFunc, insert InsertFunc) (int64, error) {
	max, err := queryMax()
	if err != nil {
		return 0, err
	}

	rank := NextRank(max)
	err = insert(rank)
	if err == nil {
		return rank, nil
	}
	if !errors.Is(err, ErrConflict) {
		return 0, err
	}

	// Re-read the high-water mark: the racing insert moved it.
	max, err = queryMax()
	if err != nil {
		return 0, err
	}
	retry := NextRank(max)
	if retry == rank {
		retry = rank + rankGap
	}
	if err := insert(retry); err != nil {
		return 0, err
	}
	return retry, nil
}
