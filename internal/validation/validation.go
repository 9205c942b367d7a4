// Package validation decodes and checks gateway request bodies before
// they are forwarded to the backend.
package validation

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"haven/internal/comment"
	"haven/internal/errors"
	"haven/shared/types"
)

// MaxBody bounds request bodies. A comment of MaxContentLength runes
// still fits when every rune is sent as a surrogate pair of \uXXXX
// escapes.
const MaxBody = comment.MaxContentLength*12 + 4<<10

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.TooLarge(tooLarge.Limit)
		}
		return errors.ValidationError("invalid request body", map[string]string{"body": err.Error()})
	}
	return nil
}

func ValidateCommentRequest(r *http.Request) (*comment.Draft, error) {
	var d comment.Draft
	if err := decode(r, &d); err != nil {
		return nil, err
	}
	if err := d.Normalize(); err != nil {
		return nil, err
	}
	return &d, nil
}

func ValidateReviewRequest(r *http.Request) (*shared.ReviewRequest, error) {
	var req shared.ReviewRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if req.ReviewerID < 1 {
		fields["reviewer_id"] = "must be positive"
	}
	if !req.Status.Valid() {
		fields["status"] = "must be one of pending_review, approved, needs_revision, draft"
	}
	if len(fields) > 0 {
		return nil, errors.ValidationError("invalid review", fields)
	}
	return &req, nil
}

// CommitID parses the {id} path value.
func CommitID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 {
		return 0, errors.ValidationError("invalid commit id", map[string]string{"id": r.PathValue("id")})
	}
	return id, nil
}

// PositiveInt parses an optional query parameter, returning def when it
// is absent.
func PositiveInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.ValidationError("invalid query parameter", map[string]string{name: raw})
	}
	return n, nil
}

// MaxRecordLimit is the largest records page the backend serves.
const MaxRecordLimit = 100

// RecordData parses raw as the data of a record, which must be a JSON
// object.
func RecordData(raw []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.ValidationError("invalid JSON format", map[string]string{"data": err.Error()})
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errors.ValidationError("record data must be a JSON object", nil)
	}
	return obj, nil
}

// RecordPage checks the limit and offset of a records listing.
func RecordPage(limit, offset int) error {
	fields := map[string]string{}
	if limit < 1 || limit > MaxRecordLimit {
		fields["limit"] = "must be between 1 and " + strconv.Itoa(MaxRecordLimit)
	}
	if offset < 0 {
		fields["offset"] = "must not be negative"
	}
	if len(fields) > 0 {
		return errors.ValidationError("invalid records page", fields)
	}
	return nil
}
