package handlers

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	TotalCountHeader = "X-Total-Count"
	maxPageSize      = 500
)

var sortColumnPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Query holds the list parameters of the api: sort=["name","ASC"], range=[0,24] and
// filter={"name":"Fresh Farms"}, all JSON encoded.
type Query struct {
	Sort   string `form:"sort"`
	Filter string `form:"filter"`
	Range  string `form:"range"`
}

func (q *Query) GetSort() (string, error) {
	var parts []string
	if err := json.Unmarshal([]byte(q.Sort), &parts); err != nil {
		return "", err
	}
	if len(parts) != 2 {
		return "", fmt.Errorf("sort needs a column and a direction")
	}
	if !sortColumnPattern.MatchString(parts[0]) {
		return "", fmt.Errorf("invalid sort column %q", parts[0])
	}
	direction := strings.ToUpper(parts[1])
	if direction != "ASC" && direction != "DESC" {
		return "", fmt.Errorf("invalid sort direction %q", parts[1])
	}
	return parts[0] + " " + direction, nil
}

// GetRange returns the page size and the offset of an inclusive [start, end] range.
func (q *Query) GetRange() (int, int, error) {
	var parts []int
	if err := json.Unmarshal([]byte(q.Range), &parts); err != nil {
		return 0, 0, err
	}
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("range needs a start and an end")
	}
	start := parts[0]
	end := parts[1]
	if start < 0 || end < start {
		return 0, 0, fmt.Errorf("invalid range [%d, %d]", start, end)
	}
	pageSize := end - start + 1
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageSize, start, nil
}

// GetFilter returns column equality filters.  Keys that are not plain column names are dropped.
func (q *Query) GetFilter() (map[string]interface{}, error) {
	var parts map[string]interface{}
	if err := json.Unmarshal([]byte(q.Filter), &parts); err != nil {
		return parts, err
	}
	for k := range parts {
		if !sortColumnPattern.MatchString(k) {
			delete(parts, k)
		}
	}
	return parts, nil
}

func FilterAndPaginate(model interface{}, c *gin.Context, orderBy string) func(db *gorm.DB) *gorm.DB {
	var query Query
	if err := c.ShouldBindQuery(&query); err != nil {
		return func(db *gorm.DB) *gorm.DB {
			_ = db.AddError(err)
			return db
		}
	}
	return FilterAndPaginateWithQuery(model, c, query, orderBy)
}

func FilterAndPaginateWithQuery(model interface{}, c *gin.Context, query Query, defaultOrderBy string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {

		if order, err := query.GetSort(); err == nil {
			db = db.Order(order)
		} else if defaultOrderBy != "" {
			db = db.Order(defaultOrderBy)
		}

		if filter, err := query.GetFilter(); err == nil && len(filter) > 0 {
			db = db.Where(filter)
		}

		if pageSize, offset, err := query.GetRange(); err == nil {
			var totalCount int64
			countDBSession := db.Session(&gorm.Session{Initialized: true})
			res := countDBSession.Model(model).Count(&totalCount)
			if res.Error != nil {
				return db
			}
			c.Header("Access-Control-Expose-Headers", TotalCountHeader)
			c.Header(TotalCountHeader, strconv.Itoa(int(totalCount)))
			db = db.Offset(offset).Limit(pageSize)
		}
		return db
	}
}
