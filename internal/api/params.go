package api

import (
	"fmt"
	"net/http"
	"strconv"
	"unicode"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/changelog/internal/httputil"
)

// Paging bounds for list endpoints.
const (
	defaultPageSize = 50
	maxPageSize     = 1000
	maxOffset       = 100_000
)

// maxParamLen bounds object types, references and property names in paths.
const maxParamLen = 255

// page reads ?limit= and ?offset=. Unparseable or out of range values are
// clamped rather than rejected so old clients keep working.
func page(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = min(v, maxPageSize)
	}

	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = min(v, maxOffset)
	}

	return limit, offset
}

// pathParams returns the named path parameters in order, or answers 400 and
// returns false when one is empty, too long or holds control characters.
func pathParams(c *gin.Context, names ...string) ([]string, bool) {
	values := make([]string, len(names))
	for i, name := range names {
		v := c.Param(name)
		if err := checkParam(name, v); err != nil {
			httputil.RespondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, err.Error())
			return nil, false
		}
		values[i] = v
	}

	return values, true
}

func checkParam(name, v string) error {
	switch {
	case v == "":
		return fmt.Errorf("%s must not be empty", name)
	case len(v) > maxParamLen:
		return fmt.Errorf("%s exceeds maximum length of %d", name, maxParamLen)
	}

	for _, r := range v {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s contains control characters", name)
		}
	}

	return nil
}
