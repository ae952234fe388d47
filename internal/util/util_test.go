package util

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibeai/backend/internal/errors"
)

func TestParseInt(t *testing.T) {
	assert.Equal(t, 3, ParseInt("3", 0))
	assert.Equal(t, 7, ParseInt("", 7))
	assert.Equal(t, 7, ParseInt("abc", 7))
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, 0, ClampInt(-2, 0, 3))
	assert.Equal(t, 3, ClampInt(9, 0, 3))
	assert.Equal(t, 2, ClampInt(2, 0, 3))
}

func TestRespondWithAPIError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithAPIError(c, errors.InvalidField("postId", "postId is required"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "BAD_REQUEST", body.Code)
	assert.Equal(t, "postId", body.Field)
}

func TestGetPrincipalFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := GetPrincipalFromContext(c)
	assert.False(t, ok)

	c.Set(PrincipalKey, "user-42")
	id, ok := GetPrincipalFromContext(c)
	assert.True(t, ok)
	assert.Equal(t, "user-42", id)
}
