package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/absmach/fedledger/pkg/api"
	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/ledger"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createdRes struct {
	ID string `json:"id"`
}

func (createdRes) Code() int                  { return http.StatusCreated }
func (createdRes) Headers() map[string]string { return map[string]string{"Location": "/x/1"} }
func (createdRes) Empty() bool                { return false }

type emptyRes struct{}

func (emptyRes) Code() int                  { return http.StatusNoContent }
func (emptyRes) Headers() map[string]string { return map[string]string{} }
func (emptyRes) Empty() bool                { return true }

func TestEncodeResponse(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, api.EncodeResponse(context.Background(), w, createdRes{ID: "1"}))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/x/1", w.Header().Get("Location"))
	assert.Equal(t, api.ContentType, w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"1"}`, w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, api.EncodeResponse(context.Background(), w, emptyRes{}))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestEncodeError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{errors.Join(apiutil.ErrValidation, apiutil.ErrMissingID), http.StatusBadRequest},
		{errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType), http.StatusUnsupportedMediaType},
		{pkgerrors.ErrMalformed, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", pkgerrors.ErrNotFound), http.StatusNotFound},
		{ledger.ErrNotFound, http.StatusNotFound},
		{pkgerrors.ErrEntityExists, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		api.EncodeError(context.Background(), tc.err, w)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())

		var body api.ErrorRes
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.err.Error(), body.Err)
	}
}
