package api

import (
	stderrors "errors"
	"net/http"

	"github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/logging"
)

// ProblemInfo is one reason a field list was rejected.
type ProblemInfo struct {
	Field   string `json:"field,omitempty"`
	Symbol  string `json:"symbol,omitempty"`
	Message string `json:"message"`
}

// respondEngineError maps engine errors onto statuses and codes. It is the only
// place that does so.
func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		compErr         *errors.CompilationError
		validationErr   *errors.ValidationError
		rowNotFound     *errors.RowNotFoundError
		notFound        *errors.NotFoundError
		inconsistentErr *errors.MigrationInconsistencyError
		abortedErr      *errors.MigrationAbortedError
		corruptErr      *errors.CorruptDefinitionError
	)

	switch {
	case stderrors.As(err, &compErr):
		problems := make([]ProblemInfo, len(compErr.Problems))
		for i, p := range compErr.Problems {
			problems[i] = problemInfo(p)
		}
		respondErrorDetails(w, http.StatusUnprocessableEntity, "SCHEMA_REJECTED", err.Error(), problems)

	case stderrors.As(err, &validationErr):
		respondErrorDetails(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), validationErr.Fields)

	case stderrors.As(err, &rowNotFound):
		respondError(w, http.StatusNotFound, "ROW_NOT_FOUND", err.Error())

	case stderrors.As(err, &notFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())

	case stderrors.As(err, &inconsistentErr):
		logging.LoggerFromContext(r.Context()).Error("storage left inconsistent", "table_id", inconsistentErr.TableID, "error", err)
		respondError(w, http.StatusInternalServerError, "MIGRATION_INCONSISTENT", err.Error())

	case stderrors.As(err, &abortedErr):
		respondError(w, http.StatusConflict, "MIGRATION_ABORTED", err.Error())

	case stderrors.As(err, &corruptErr):
		logging.LoggerFromContext(r.Context()).Error("corrupt table definition", "table_id", corruptErr.TableID, "error", err)
		respondError(w, http.StatusInternalServerError, "CORRUPT_DEFINITION", err.Error())

	case stderrors.Is(err, errors.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())

	default:
		logging.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func problemInfo(err error) ProblemInfo {
	var (
		unknown *errors.UnknownTypeError
		badName *errors.FieldNameError
	)
	switch {
	case stderrors.As(err, &unknown):
		return ProblemInfo{Field: unknown.Field, Symbol: unknown.Symbol, Message: err.Error()}
	case stderrors.As(err, &badName):
		return ProblemInfo{Field: badName.Field, Message: err.Error()}
	}
	return ProblemInfo{Message: err.Error()}
}
