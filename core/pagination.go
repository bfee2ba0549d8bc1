package core

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
	maxPage        = 100
)

// PageRequest is a validated page/sort selection.
type PageRequest struct {
	Page    int
	PerPage int
	Sort    string
	Desc    bool
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// orderClause renders ORDER BY for p using only whitelisted columns.
func (p PageRequest) orderClause(columns map[string]string) string {
	col, ok := columns[p.Sort]
	if !ok {
		col = "id"
	}
	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}
	if col == "id" {
		return "ORDER BY id " + dir
	}
	return fmt.Sprintf("ORDER BY %s %s, id %s", col, dir, dir)
}

// parsePageRequest validates page, per_page and sort=field[,asc|desc].
func parsePageRequest(pageStr, perPageStr, sortStr string, allowedSort []string) (PageRequest, error) {
	pr := PageRequest{Page: 1, PerPage: defaultPerPage, Sort: "id"}
	if strings.TrimSpace(pageStr) != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return PageRequest{}, errors.New("page must be a positive integer")
		}
		if p > maxPage {
			return PageRequest{}, fmt.Errorf("page cannot be greater than %d", maxPage)
		}
		pr.Page = p
	}
	if strings.TrimSpace(perPageStr) != "" {
		p, err := strconv.Atoi(perPageStr)
		if err != nil || p <= 0 {
			return PageRequest{}, errors.New("per_page must be a positive integer")
		}
		if p > maxPerPage {
			p = maxPerPage
		}
		pr.PerPage = p
	}
	if s := strings.TrimSpace(sortStr); s != "" {
		field, order, _ := strings.Cut(s, ",")
		field = strings.TrimSpace(field)
		if !slices.Contains(allowedSort, field) {
			return PageRequest{}, fmt.Errorf("invalid sort field: %s", field)
		}
		pr.Sort = field
		switch strings.ToLower(strings.TrimSpace(order)) {
		case "", "asc":
		case "desc":
			pr.Desc = true
		default:
			return PageRequest{}, errors.New("invalid sort order: must be 'asc' or 'desc'")
		}
	}
	return pr, nil
}

func calcTotalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

func pageResponse(items any, total int, pr PageRequest) gin.H {
	return gin.H{
		"items":       items,
		"page":        pr.Page,
		"per_page":    pr.PerPage,
		"total_items": total,
		"total_pages": calcTotalPages(total, pr.PerPage),
	}
}
