package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomwork/loom/internal/reflect"
)

func TestReflectHandlers_Catalog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &reflectHandlers{registry: newTestRegistry()}
	router := gin.New()
	router.GET("/reflect/catalog", h.catalog)

	req := httptest.NewRequest(http.MethodGet, "/reflect/catalog?category=logic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Nodes []reflect.CatalogEntry `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
}

func TestReflectHandlers_ExplainRejectsBadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &reflectHandlers{registry: newTestRegistry()}
	router := gin.New()
	router.POST("/reflect/explain", h.explain)

	req := httptest.NewRequest(http.MethodPost, "/reflect/explain", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReflectHandlers_Successors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &reflectHandlers{registry: newTestRegistry()}
	router := gin.New()
	router.GET("/reflect/graph/:nodeId/successors", h.successors)

	req := httptest.NewRequest(http.MethodGet, "/reflect/graph/math/successors", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
