package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atinyakov/devtrack/internal/models"
)

const maxBodyBytes = 1 << 20

// fieldIssue mirrors one entry of a 422 detail list.
type fieldIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail sends the {"detail": ...} error body clients parse.
func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

// decode reads a JSON body into dst and validates it. It writes the
// error response itself and reports whether the handler may continue.
func decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeDetail(w, http.StatusUnprocessableEntity, []fieldIssue{{
				Loc: []string{"body"}, Msg: "body is required", Type: "missing",
			}})
			return false
		}
		writeDetail(w, http.StatusUnprocessableEntity, []fieldIssue{{
			Loc: []string{"body"}, Msg: "invalid JSON body", Type: "json_invalid",
		}})
		return false
	}

	err := v.Struct(dst)
	if err == nil {
		return true
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	issues := make([]fieldIssue, 0, len(ve))
	for _, fe := range ve {
		issues = append(issues, fieldIssue{
			Loc:  []string{"body", fe.Field()},
			Msg:  models.FieldMessage(fe),
			Type: fe.Tag(),
		})
	}
	writeDetail(w, http.StatusUnprocessableEntity, issues)
	return false
}

// pathID parses the {id} URL parameter, answering 422 when malformed.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeDetail(w, http.StatusUnprocessableEntity, []fieldIssue{{
			Loc: []string{"path", "id"}, Msg: "id must be a positive integer", Type: "int_parsing",
		}})
		return 0, false
	}
	return id, true
}

// queryProjectID parses the optional project_id filter. Zero means none.
func queryProjectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("project_id")
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		writeDetail(w, http.StatusUnprocessableEntity, []fieldIssue{{
			Loc: []string{"query", "project_id"}, Msg: "project_id must be an integer", Type: "int_parsing",
		}})
		return 0, false
	}
	return id, true
}
