package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"storehub/backend/internal/audit/domain"
)

type fakeLister struct {
	err                 error
	gotLimit, gotOffset int
	gotAccount          string
}

func (f *fakeLister) ListRecent(_ context.Context, limit, offset int) ([]*domain.Event, error) {
	f.gotLimit, f.gotOffset = limit, offset
	return nil, f.err
}

func (f *fakeLister) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]*domain.Event, error) {
	f.gotAccount, f.gotLimit, f.gotOffset = accountID, limit, offset
	return []*domain.Event{{ID: "e1", AccountID: accountID, Action: domain.ActionLogin, Outcome: domain.OutcomeSuccess}}, f.err
}

func list(l Lister, query string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/admin/audit", NewHandler(l, nil).List)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/audit"+query, nil))
	return w
}

func TestList_Defaults(t *testing.T) {
	f := &fakeLister{}
	w := list(f, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"events":[],"limit":50,"offset":0}`, w.Body.String())
	assert.Equal(t, 50, f.gotLimit)
}

func TestList_ByAccountAndClamp(t *testing.T) {
	f := &fakeLister{}
	w := list(f, "?account_id=acct-1&limit=1000&offset=5")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acct-1", f.gotAccount)
	assert.Equal(t, maxLimit, f.gotLimit)
	assert.Equal(t, 5, f.gotOffset)
	assert.Contains(t, w.Body.String(), `"id":"e1"`)
}

func TestList_BadQuery(t *testing.T) {
	for _, q := range []string{"?limit=abc", "?limit=0", "?offset=-1"} {
		w := list(&fakeLister{}, q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String(), q)
	}
}

func TestList_RepositoryError(t *testing.T) {
	w := list(&fakeLister{err: errors.New("disk I/O error")}, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}
