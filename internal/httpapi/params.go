package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/emaland/cmp/internal/cloud"
	"github.com/emaland/cmp/internal/errs"
)

// query reads typed URL parameters, keeping the first parse error.
type query struct {
	r   *http.Request
	err error
}

func newQuery(r *http.Request) *query { return &query{r: r} }

func (q *query) str(name string) string {
	return q.r.URL.Query().Get(name)
}

func (q *query) intDefault(name string, def int) int {
	s := q.str(name)
	if s == "" || q.err != nil {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		q.err = errs.Newf(errs.EInvalid, "%s must be an integer", name)
		return def
	}
	return v
}

func (q *query) optInt(name string) *int {
	if q.str(name) == "" {
		return nil
	}
	v := q.intDefault(name, 0)
	return &v
}

func (q *query) optFloat(name string) *float64 {
	s := q.str(name)
	if s == "" || q.err != nil {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		q.err = errs.Newf(errs.EInvalid, "%s must be a number", name)
		return nil
	}
	return &v
}

func (q *query) optBool(name string) *bool {
	s := q.str(name)
	if s == "" || q.err != nil {
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		q.err = errs.Newf(errs.EInvalid, "%s must be true or false", name)
		return nil
	}
	return &v
}

func (q *query) boolDefault(name string, def bool) bool {
	if v := q.optBool(name); v != nil {
		return *v
	}
	return def
}

func (q *query) chargeType(name string) cloud.ChargeType {
	ct, ok := cloud.ParseChargeType(q.str(name))
	if !ok && q.err == nil {
		q.err = errs.Newf(errs.EInvalid, "unknown %s %q", name, q.str(name))
	}
	return ct
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errs.New(errs.EInvalid, "id must be a positive integer")
	}
	return id, nil
}
