package infra

import (
	"errors"

	"loyalty-core/internal/pkg/errs"
)

type RepositoryErrorKind string

// Infrastructure-specific error kinds. The conditional-update repositories
// report *why* an atomic check matched no row through these; usecases map
// them onto their sentinel errors.
const (
	KindNotFound            RepositoryErrorKind = "NOT_FOUND"
	KindDBFailure           RepositoryErrorKind = "DB_FAILURE"
	KindDuplicateKey        RepositoryErrorKind = "DUPLICATE_KEY"
	KindForeignKeyViolated  RepositoryErrorKind = "FOREIGN_KEY_VIOLATED"
	KindInsufficientBalance RepositoryErrorKind = "INSUFFICIENT_BALANCE"
	KindOutOfStock          RepositoryErrorKind = "OUT_OF_STOCK"
	KindInactive            RepositoryErrorKind = "INACTIVE"
	KindExpired             RepositoryErrorKind = "EXPIRED"
	KindConflict            RepositoryErrorKind = "CONFLICT"
)

type RepositoryError struct {
	Kind RepositoryErrorKind
	msg  string
	err  error // wrapped low-level error
}

func (e RepositoryError) Error() string {
	if e.err != nil {
		return string(e.Kind) + ": " + e.msg + ": " + e.err.Error()
	}
	return string(e.Kind) + ": " + e.msg
}

func (e RepositoryError) Unwrap() error {
	return e.err
}

// WrapRepoErr defaults to KindDBFailure when no kind is given.
func WrapRepoErr(msg string, err error, kind ...RepositoryErrorKind) error {
	k := KindDBFailure
	if len(kind) > 0 {
		k = kind[0]
	}
	if err != nil {
		err = errs.Wrap(err, msg)
	}
	return RepositoryError{Kind: k, msg: msg, err: err}
}

func IsKind(err error, kind RepositoryErrorKind) bool {
	var e RepositoryError
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
