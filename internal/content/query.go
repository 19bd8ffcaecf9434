package content

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/models"
)

// MaxLimit caps the limit query parameter.
const MaxLimit = 200

// parseOptions reads list options from the query string: featured,
// published, active, category, author, type, from, to and limit.
func parseOptions(c *gin.Context) (models.ListOptions, error) {
	var opts models.ListOptions
	fields := map[string]string{}

	boolParam := func(name string) *bool {
		v, ok := c.GetQuery(name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			fields[name] = "must be true or false"
			return nil
		}
		return &b
	}
	uuidParam := func(name string) *uuid.UUID {
		v := c.Query(name)
		if v == "" {
			return nil
		}
		id, err := uuid.Parse(v)
		if err != nil {
			fields[name] = "must be a uuid"
			return nil
		}
		return &id
	}
	dateParam := func(name string) *models.Date {
		v := c.Query(name)
		if v == "" {
			return nil
		}
		d, err := models.ParseDate(v)
		if err != nil {
			fields[name] = "must be a YYYY-MM-DD date"
			return nil
		}
		return &d
	}

	opts.Featured = boolParam("featured")
	opts.Published = boolParam("published")
	opts.Active = boolParam("active")
	opts.Category = uuidParam("category")
	opts.Author = uuidParam("author")
	opts.Type = c.Query("type")
	opts.DateFrom = dateParam("from")
	opts.DateTo = dateParam("to")
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil || n < 0:
			fields["limit"] = "must be a positive number"
		case n > MaxLimit:
			opts.Limit = MaxLimit
		default:
			opts.Limit = n
		}
	}
	if len(fields) > 0 {
		return opts, apperr.Validation("invalid query", fields)
	}
	return opts, nil
}

// restrict forces the visibility predicates of base onto opts.
func restrict(opts, base models.ListOptions) models.ListOptions {
	if base.Published != nil {
		opts.Published = base.Published
	}
	if base.Active != nil {
		opts.Active = base.Active
	}
	return opts
}
